package receipt

import (
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

// storeHarness opens a fresh store and counts the rows of a singleton collection
type storeHarness struct {
	open           func(path string, ts TimeSource) (Store, error)
	countSingleton func(s Store, name string) int
}

var _ = Describe("SQLiteStore", func() {
	itBehavesLikeAStore(storeHarness{
		open: func(path string, ts TimeSource) (Store, error) {
			return NewSQLiteStoreWithDeps(filepath.Join(path, "spend.db"), ts)
		},
		countSingleton: func(s Store, name string) int {
			var count int
			err := s.(*SQLiteStore).db.QueryRow("SELECT COUNT(*) FROM " + name).Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			return count
		},
	})

	It("should create missing parent directories", func() {
		dir, err := os.MkdirTemp("", "sqlite-test")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		store, err := NewSQLiteStore(filepath.Join(dir, "nested", "data", "spend.db"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Close()).To(Succeed())
	})
})

var _ = Describe("BoltStore", func() {
	itBehavesLikeAStore(storeHarness{
		open: func(path string, ts TimeSource) (Store, error) {
			return NewBoltStoreWithDeps(filepath.Join(path, "spend.bolt"), ts)
		},
		countSingleton: func(s Store, name string) int {
			var count int
			err := s.(*BoltStore).db.View(func(tx *bbolt.Tx) error {
				count = tx.Bucket([]byte(name)).Stats().KeyN
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			return count
		},
	})
})

func itBehavesLikeAStore(h storeHarness) {
	var (
		store Store
		clock *fixedTimeSource
		today civil.Date
	)

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "store-test")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		clock = &fixedTimeSource{now: time.Date(2024, time.March, 20, 9, 0, 0, 0, time.Local)}
		today = civil.DateOf(clock.now)

		store, err = h.open(dir, clock)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
	})

	mustInsert := func(n NewReceipt) *Receipt {
		r, err := store.InsertReceipt(n)
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	Describe("Initialize", func() {
		It("should be safe to call repeatedly", func() {
			mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(3), Category: "Gas"})
			Expect(store.Initialize()).To(Succeed())
			Expect(store.Initialize()).To(Succeed())

			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
		})
	})

	Describe("InsertReceipt", func() {
		It("should assign increasing identifiers", func() {
			first := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: "Gas"})
			second := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(2), Category: "Gas"})
			Expect(second.ID).To(BeNumerically(">", first.ID))
		})

		It("should default the date to today", func() {
			r := mustInsert(NewReceipt{TotalPrice: decimal.RequireFromString("12.50"), Category: "Dining"})
			Expect(r.DateScanned).To(Equal(today))
		})

		It("should round-trip every field", func() {
			mustInsert(NewReceipt{
				TotalPrice:     decimal.RequireFromString("15.99"),
				Category:       "Entertainment",
				IsRecurring:    true,
				RecurrenceType: RecurrenceBeginningOfMonth,
				Date:           civil.Date{Year: 2024, Month: time.March, Day: 1},
			})

			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			r := receipts[0]
			Expect(r.TotalPrice.Equal(decimal.RequireFromString("15.99"))).To(BeTrue())
			Expect(r.Category).To(Equal("Entertainment"))
			Expect(r.IsRecurring).To(BeTrue())
			Expect(r.RecurrenceType).To(Equal(RecurrenceBeginningOfMonth))
			Expect(r.DateScanned).To(Equal(civil.Date{Year: 2024, Month: time.March, Day: 1}))
		})

		It("should store a non-recurring receipt without a recurrence type", func() {
			mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(4), Category: "Misc"})
			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts[0].IsRecurring).To(BeFalse())
			Expect(receipts[0].RecurrenceType).To(BeEmpty())
		})

		DescribeTable("rejecting receipts that break the data model",
			func(n NewReceipt) {
				_, err := store.InsertReceipt(n)
				Expect(err).To(MatchError(ErrInvalidReceipt))

				receipts, err := store.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
			},
			Entry("recurring without a type", NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: "Gas", IsRecurring: true}),
			Entry("type without recurring", NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: "Gas", RecurrenceType: RecurrenceCurrentDate}),
			Entry("negative price", NewReceipt{TotalPrice: decimal.NewFromInt(-1), Category: "Gas"}),
			Entry("empty category", NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: " "}),
		)
	})

	Describe("ListReceipts", func() {
		It("should list non-recurring receipts first, newest first", func() {
			old := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: "Gas", Date: today.AddDays(-5)})
			recurring := mustInsert(NewReceipt{
				TotalPrice: decimal.NewFromInt(2), Category: "Utilities",
				IsRecurring: true, RecurrenceType: RecurrenceCurrentDate, Date: today,
			})
			recent := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(3), Category: "Dining", Date: today})

			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())

			ids := make([]int64, 0, len(receipts))
			for _, r := range receipts {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]int64{recent.ID, old.ID, recurring.ID}))
		})

		It("should return an empty list for an empty store", func() {
			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})
	})

	Describe("ListReceiptsSince", func() {
		It("should include the cutoff date and exclude older receipts", func() {
			mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(1), Category: "Gas", Date: today.AddDays(-31)})
			onCutoff := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(2), Category: "Gas", Date: today.AddDays(-30)})
			recent := mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(3), Category: "Gas", Date: today})

			receipts, err := store.ListReceiptsSince(today.AddDays(-30))
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
			Expect(receipts[0].ID).To(Equal(onCutoff.ID))
			Expect(receipts[1].ID).To(Equal(recent.ID))
		})
	})

	Describe("paycheck and budget", func() {
		It("should read zero when unset", func() {
			paycheck, err := store.GetPaycheck()
			Expect(err).NotTo(HaveOccurred())
			Expect(paycheck.IsZero()).To(BeTrue())

			budget, err := store.GetBudget()
			Expect(err).NotTo(HaveOccurred())
			Expect(budget.IsZero()).To(BeTrue())
		})

		It("should keep exactly one paycheck row across writes", func() {
			Expect(store.SetPaycheck(decimal.NewFromInt(1000))).To(Succeed())
			Expect(store.SetPaycheck(decimal.NewFromInt(1500))).To(Succeed())

			paycheck, err := store.GetPaycheck()
			Expect(err).NotTo(HaveOccurred())
			Expect(paycheck.Equal(decimal.NewFromInt(1500))).To(BeTrue())
			Expect(h.countSingleton(store, "paycheck")).To(Equal(1))
		})

		It("should keep the budget independent of the paycheck", func() {
			Expect(store.SetPaycheck(decimal.NewFromInt(2000))).To(Succeed())
			Expect(store.SetBudget(decimal.RequireFromString("250.75"))).To(Succeed())
			Expect(store.SetBudget(decimal.NewFromInt(300))).To(Succeed())

			budget, err := store.GetBudget()
			Expect(err).NotTo(HaveOccurred())
			Expect(budget.Equal(decimal.NewFromInt(300))).To(BeTrue())
			Expect(h.countSingleton(store, "budget")).To(Equal(1))

			paycheck, err := store.GetPaycheck()
			Expect(err).NotTo(HaveOccurred())
			Expect(paycheck.Equal(decimal.NewFromInt(2000))).To(BeTrue())
		})
	})

	Describe("dropping collections", func() {
		BeforeEach(func() {
			mustInsert(NewReceipt{TotalPrice: decimal.NewFromInt(9), Category: "Gas"})
			Expect(store.SetPaycheck(decimal.NewFromInt(1000))).To(Succeed())
			Expect(store.SetBudget(decimal.NewFromInt(100))).To(Succeed())
		})

		It("should make receipt operations fail until re-initialized", func() {
			Expect(store.DropReceipts()).To(Succeed())

			_, err := store.ListReceipts()
			Expect(err).To(HaveOccurred())

			Expect(store.Initialize()).To(Succeed())
			receipts, err := store.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})

		It("should drop only the named singleton", func() {
			Expect(store.DropPaycheck()).To(Succeed())

			budget, err := store.GetBudget()
			Expect(err).NotTo(HaveOccurred())
			Expect(budget.Equal(decimal.NewFromInt(100))).To(BeTrue())

			Expect(store.Initialize()).To(Succeed())
			paycheck, err := store.GetPaycheck()
			Expect(err).NotTo(HaveOccurred())
			Expect(paycheck.IsZero()).To(BeTrue())
		})

		It("should tolerate dropping twice", func() {
			Expect(store.DropBudget()).To(Succeed())
			Expect(store.DropBudget()).To(Succeed())
		})
	})
}
