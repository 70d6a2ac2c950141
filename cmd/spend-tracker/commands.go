package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/peterbourgon/ff/v4"
	"github.com/shopspring/decimal"

	"github.com/zombor/spend-tracker/internal/receipt"
)

// unconfiguredClient stands in for OCR and classification in commands that never ingest
type unconfiguredClient struct{}

var errUnconfigured = errors.New("no OCR or classifier configured for this command")

func (unconfiguredClient) ExtractText(context.Context, []byte, string) (string, error) {
	return "", errUnconfigured
}

func (unconfiguredClient) Complete(context.Context, string) (string, error) {
	return "", errUnconfigured
}

func (unconfiguredClient) Close() error { return nil }

func newRootCommand(cfg *config, out io.Writer) *ff.Command {
	rootFlags := ff.NewFlagSet("spend-tracker")
	cfg.register(rootFlags)

	return &ff.Command{
		Name:      "spend-tracker",
		Usage:     "spend-tracker [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "track spending from photographed receipts",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			newServeCommand(cfg),
			newIngestCommand(cfg, out),
			newAddCommand(cfg, out),
			newReceiptsCommand(cfg, out),
			newDashboardCommand(cfg, out),
			newAmountCommand(cfg, out, "paycheck", "monthly income"),
			newAmountCommand(cfg, out, "budget", "monthly savings goal"),
			newResetCommand(cfg, out),
		},
	}
}

func newServeCommand(cfg *config) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(cfg.flags)
	var (
		port     = fs.IntLong("port", 8080, "HTTP server port")
		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "spend-tracker serve [FLAGS]",
		ShortHelp: "run the JSON API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := cfg.openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			basicAuth := receipt.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			}
			server := receipt.NewServer(a.service, a.dashboard, basicAuth)
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx, fmt.Sprintf(":%d", *port))
		},
	}
}

func newIngestCommand(cfg *config, out io.Writer) *ff.Command {
	fs := ff.NewFlagSet("ingest").SetParent(cfg.flags)

	return &ff.Command{
		Name:      "ingest",
		Usage:     "spend-tracker ingest [FLAGS] <FILE>...",
		ShortHelp: "scan receipt images from disk",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("ingest requires at least one file")
			}

			a, err := cfg.openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					slog.Error("Error reading file", "path", path, "error", err)
					failed++
					continue
				}

				r, err := a.service.Ingest(ctx, data, contentTypeOf(path, data))
				if err != nil {
					fmt.Fprintf(out, "%s\tfailed (%s): %v\n", path, receipt.ErrorKind(err), err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s\t#%d\t%s\t%s\n", path, r.ID, r.TotalPrice.StringFixed(2), r.Category)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

// contentTypeOf guesses a MIME type from the extension, then from the bytes
func contentTypeOf(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	}
	return http.DetectContentType(data)
}

func newAddCommand(cfg *config, out io.Writer) *ff.Command {
	fs := ff.NewFlagSet("add").SetParent(cfg.flags)
	var (
		amount     = fs.StringLong("amount", "", "Total price, e.g. 12.50")
		category   = fs.StringLong("category", "", "Spending category")
		recurring  = fs.BoolLong("recurring", "Mark the receipt as a recurring charge")
		recurrence = fs.StringLong("recurrence", "", "Recurrence type: 'current_date' or 'beginning_of_month'")
		date       = fs.StringLong("date", "", "Receipt date as YYYY-MM-DD (default today)")
	)

	return &ff.Command{
		Name:      "add",
		Usage:     "spend-tracker add --amount <AMOUNT> --category <CATEGORY> [FLAGS]",
		ShortHelp: "enter a receipt by hand",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			price, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(*amount), "$"))
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", *amount, err)
			}

			n := receipt.NewReceipt{
				TotalPrice:     price,
				Category:       *category,
				IsRecurring:    *recurring,
				RecurrenceType: receipt.RecurrenceType(*recurrence),
			}
			if *date != "" {
				n.Date, err = civil.ParseDate(*date)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", *date, err)
				}
			}

			a, err := cfg.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.service.AddReceipt(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "#%d\t%s\t%s\t%s\n", r.ID, r.DateScanned, r.TotalPrice.StringFixed(2), r.Category)
			return nil
		},
	}
}

func newReceiptsCommand(cfg *config, out io.Writer) *ff.Command {
	fs := ff.NewFlagSet("receipts").SetParent(cfg.flags)
	asJSON := fs.BoolLong("json", "Print JSON instead of a table")

	return &ff.Command{
		Name:      "receipts",
		Usage:     "spend-tracker receipts [FLAGS]",
		ShortHelp: "list stored receipts",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := cfg.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			receipts, err := a.service.ListReceipts()
			if err != nil {
				return err
			}
			if *asJSON {
				return writeJSON(out, receipts)
			}
			return writeReceiptTable(out, receipts)
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReceiptTable(out io.Writer, receipts []*receipt.Receipt) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTOTAL\tCATEGORY\tRECURRING")
	for _, r := range receipts {
		recurring := "-"
		if r.IsRecurring {
			recurring = string(r.RecurrenceType)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.DateScanned, r.TotalPrice.StringFixed(2), r.Category, recurring)
	}
	return tw.Flush()
}

func newDashboardCommand(cfg *config, out io.Writer) *ff.Command {
	fs := ff.NewFlagSet("dashboard").SetParent(cfg.flags)
	asJSON := fs.BoolLong("json", "Print JSON instead of text")

	return &ff.Command{
		Name:      "dashboard",
		Usage:     "spend-tracker dashboard [FLAGS]",
		ShortHelp: "show the last 30 days of spending",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := cfg.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.dashboard.Summary()
			if err != nil {
				return err
			}
			if *asJSON {
				return writeJSON(out, summary)
			}
			return writeSummary(out, summary)
		},
	}
}

func writeSummary(out io.Writer, s *receipt.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Spent (30 days)\t%s\n", s.Total.StringFixed(2))
	fmt.Fprintf(tw, "Paycheck\t%s\n", s.Paycheck.StringFixed(2))
	fmt.Fprintf(tw, "Savings goal\t%s\n", s.Budget.StringFixed(2))
	fmt.Fprintf(tw, "Spending ratio\t%.1f%%\n", s.SpendingRatio*100)
	fmt.Fprintf(tw, "Savings ratio\t%.1f%%\n", s.SavingsRatio*100)
	fmt.Fprintf(tw, "Status\t%s\n", s.Status)
	if s.Overspend.IsPositive() {
		fmt.Fprintf(tw, "Overspend\t%s\n", s.Overspend.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Daily totals, oldest first:")
	days := make([]string, len(s.DailyTotals))
	for i, d := range s.DailyTotals {
		days[i] = d.StringFixed(2)
	}
	_, err := fmt.Fprintln(out, strings.Join(days, " "))
	return err
}

// newAmountCommand builds the paycheck and budget commands: print the amount, or set it when given
func newAmountCommand(cfg *config, out io.Writer, name, description string) *ff.Command {
	fs := ff.NewFlagSet(name).SetParent(cfg.flags)

	return &ff.Command{
		Name:      name,
		Usage:     fmt.Sprintf("spend-tracker %s [AMOUNT]", name),
		ShortHelp: fmt.Sprintf("show or set the %s", description),
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			a, err := cfg.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			get, set := a.service.GetPaycheck, a.service.SetPaycheck
			if name == "budget" {
				get, set = a.service.GetBudget, a.service.SetBudget
			}

			var amount decimal.Decimal
			if len(args) == 0 {
				amount, err = get()
			} else {
				amount, err = set(receipt.ParseAmount(strings.Join(args, "")))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, amount.StringFixed(2))
			return nil
		},
	}
}

func newResetCommand(cfg *config, out io.Writer) *ff.Command {
	fs := ff.NewFlagSet("reset").SetParent(cfg.flags)
	var (
		receipts = fs.BoolLong("receipts", "Drop every receipt")
		paycheck = fs.BoolLong("paycheck", "Drop the paycheck")
		budget   = fs.BoolLong("budget", "Drop the savings goal")
		yes      = fs.BoolLong("yes", "Confirm the destructive drop")
	)

	return &ff.Command{
		Name:      "reset",
		Usage:     "spend-tracker reset [--receipts] [--paycheck] [--budget] --yes",
		ShortHelp: "drop stored records (destructive)",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if !*receipts && !*paycheck && !*budget {
				return errors.New("choose at least one of --receipts, --paycheck or --budget")
			}
			if !*yes {
				return errors.New("refusing to drop records without --yes")
			}

			a, err := cfg.openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			drops := []struct {
				enabled bool
				name    string
				drop    func() error
			}{
				{*receipts, "receipts", a.store.DropReceipts},
				{*paycheck, "paycheck", a.store.DropPaycheck},
				{*budget, "budget", a.store.DropBudget},
			}
			for _, d := range drops {
				if !d.enabled {
					continue
				}
				if err := d.drop(); err != nil {
					return err
				}
				slog.Warn("Dropped collection", "collection", d.name)
				fmt.Fprintf(out, "dropped %s\n", d.name)
			}

			// Recreate empty collections so the next run starts clean
			return a.store.Initialize()
		},
	}
}
