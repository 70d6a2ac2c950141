package scanning

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel is used when a completion carries no CATEGORY line
const UncategorizedLabel = "Uncategorized"

// CategoryMatch selects how the CATEGORY line of a completion is read
type CategoryMatch int

const (
	// CategoryMatchWord takes the first word after the marker.
	// Multi-word labels such as "Health & Wellness" come out truncated.
	CategoryMatchWord CategoryMatch = iota
	// CategoryMatchLine takes the rest of the line and maps it onto Categories
	CategoryMatchLine
)

func (m CategoryMatch) String() string {
	switch m {
	case CategoryMatchLine:
		return "line"
	default:
		return "word"
	}
}

// ParseCategoryMatch converts a flag value into a CategoryMatch
func ParseCategoryMatch(s string) (CategoryMatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "word":
		return CategoryMatchWord, nil
	case "line":
		return CategoryMatchLine, nil
	default:
		return CategoryMatchWord, fmt.Errorf("unknown category match mode %q (want 'word' or 'line')", s)
	}
}

var (
	totalPricePattern = regexp.MustCompile(`(?i)TOTAL_PRICE:\s*\$?(\d+(\.\d{2})?)`)
	// \s* crosses line breaks, so an empty CATEGORY: line takes the first word of the next line
	categoryWordPattern = regexp.MustCompile(`(?i)CATEGORY:\s*(\w+)`)
	categoryLinePattern = regexp.MustCompile(`(?im)CATEGORY:[ \t]*([^\r\n]*)`)
)

// Completion holds the values pulled out of a classification completion
type Completion struct {
	TotalPrice decimal.Decimal
	Category   string

	// PriceDefaulted and CategoryDefaulted report that a marker was missing
	// and the default value was substituted.
	PriceDefaulted    bool
	CategoryDefaulted bool
}

// ParseCompletion extracts the total price and category from a completion.
// It never fails: a missing total becomes 0 and a missing category becomes UncategorizedLabel.
func ParseCompletion(text string, mode CategoryMatch) Completion {
	var c Completion

	c.TotalPrice, c.PriceDefaulted = parseTotalPrice(text)

	switch mode {
	case CategoryMatchLine:
		c.Category, c.CategoryDefaulted = parseCategoryLine(text)
	default:
		c.Category, c.CategoryDefaulted = parseCategoryWord(text)
	}

	return c
}

func parseTotalPrice(text string) (decimal.Decimal, bool) {
	m := totalPricePattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, true
	}
	price, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, true
	}
	return price.Round(2), false
}

func parseCategoryWord(text string) (string, bool) {
	m := categoryWordPattern.FindStringSubmatch(text)
	if m == nil {
		return UncategorizedLabel, true
	}
	return m[1], false
}

func parseCategoryLine(text string) (string, bool) {
	m := categoryLinePattern.FindStringSubmatch(text)
	if m == nil {
		return UncategorizedLabel, true
	}
	label := strings.Trim(m[1], " \t\"'*.[]`")
	if label == "" {
		return UncategorizedLabel, true
	}
	for _, category := range Categories {
		if strings.EqualFold(label, category) {
			return category, false
		}
	}
	return label, false
}
