package insight

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultDateLayout renders dates as month/day/year without padding.
const DefaultDateLayout = "1/2/2006"

// Placeholder is rendered for missing cells.
const Placeholder = "-"

var dateInputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 02 Jan 2006 15:04:05 GMT",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// Formatter turns cell values into display strings.
type Formatter struct {
	DateLayout string
}

// NewFormatter returns a formatter using layout, or DefaultDateLayout when empty.
func NewFormatter(layout string) Formatter {
	if strings.TrimSpace(layout) == "" {
		layout = DefaultDateLayout
	}
	return Formatter{DateLayout: layout}
}

// IsDateColumn reports whether a column holds dates by name.
func IsDateColumn(column string) bool {
	lower := strings.ToLower(column)
	return strings.Contains(lower, "date") || strings.Contains(lower, "fecha")
}

// Cell formats a value for display. Date columns whose value parses as a date
// render date-only; nil renders as Placeholder.
func (f Formatter) Cell(column string, value any) string {
	if value == nil {
		return Placeholder
	}
	if IsDateColumn(column) {
		if s, ok := value.(string); ok {
			if t, ok := parseDate(s); ok {
				return t.Format(f.layout())
			}
		}
	}
	return textValue(value)
}

func (f Formatter) layout() string {
	if f.DateLayout == "" {
		return DefaultDateLayout
	}
	return f.DateLayout
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatUSD renders whole-dollar US currency: $1,235 or -$40.
func FormatUSD(v float64) string {
	rounded := int64(math.Round(v))
	if rounded < 0 {
		return "-$" + humanize.Comma(-rounded)
	}
	return "$" + humanize.Comma(rounded)
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(v float64) string {
	return formatNumber(v)
}
