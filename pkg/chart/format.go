package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// OutputFormat is an axis label format code.
type OutputFormat string

const (
	FormatNormal   OutputFormat = "normal"
	FormatMoney    OutputFormat = "money"
	FormatThousand OutputFormat = "thousand"
	FormatDate     OutputFormat = "date"
	FormatDateTime OutputFormat = "datetime"
	FormatTime     OutputFormat = "time"

	// FormatDecimal1 is used by built-in defaults only (scatter x axis).
	FormatDecimal1 OutputFormat = "decimal1"
)

// ParseOutputFormat accepts the attribute-settable codes.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatNormal, FormatMoney, FormatThousand, FormatDate, FormatDateTime, FormatTime:
		return f, true
	}
	return "", false
}

// maxEpochMillis is the representable calendar range of an epoch in milliseconds.
const maxEpochMillis = 8.64e15

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006 15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 2 2006",
}

// Formatter maps raw axis values to display strings. Failures return the
// input value unchanged.
type Formatter struct {
	loc     *time.Location
	printer *message.Printer
}

// NewFormatter renders calendar formats in loc (UTC when nil).
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc, printer: message.NewPrinter(language.English)}
}

var defaultFormatter = NewFormatter(time.UTC)

// Format uses the UTC formatter.
func Format(v any, code OutputFormat) any { return defaultFormatter.Format(v, code) }

// Label is Format rendered as a string.
func (f *Formatter) Label(v any, code OutputFormat) string {
	out := f.Format(v, code)
	if s, ok := out.(string); ok {
		return s
	}
	return scalarString(out)
}

func (f *Formatter) Format(v any, code OutputFormat) any {
	switch code {
	case FormatMoney:
		n, ok := toNumber(v)
		if !ok {
			return v
		}
		return f.printer.Sprintf("%.2f", roundHalfAway(n, 2))
	case FormatThousand:
		n, ok := toNumber(v)
		if !ok {
			return v
		}
		return f.printer.Sprintf("%.0f", roundHalfAway(n, 0))
	case FormatDecimal1:
		n, ok := toNumber(v)
		if !ok {
			return v
		}
		return strconv.FormatFloat(roundHalfAway(n, 1), 'f', 1, 64)
	case FormatDate, FormatDateTime, FormatTime:
		t, ok := f.toTime(v)
		if !ok {
			return v
		}
		switch code {
		case FormatDate:
			return t.Format("2006-01-02")
		case FormatDateTime:
			return t.Format("2006-01-02 15:04")
		default:
			return t.Format("15:04")
		}
	default:
		return v
	}
}

func roundHalfAway(n float64, digits int) float64 {
	p := math.Pow10(digits)
	r := math.Round(n*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// toNumber is loose numeric coercion: numbers, numeric strings (blank is 0),
// booleans and null. Non-finite results fail.
func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case nil:
		n = 0
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case bool:
		if x {
			n = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func (f *Formatter) toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.In(f.loc), true
	case float64, float32, int, int64, json.Number:
		n, ok := toNumber(x)
		if !ok {
			return time.Time{}, false
		}
		return f.fromMillis(n)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if isDigits(s) {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return time.Time{}, false
			}
			return f.fromMillis(n)
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
				return t.In(f.loc), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func (f *Formatter) fromMillis(ms float64) (time.Time, bool) {
	if math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).In(f.loc), true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// LabelFormatter marks an axis label formatter in a configuration tree.
// Engines resolve it by Format; it serializes as {"kind":"axis-format","format":...}.
type LabelFormatter struct {
	Format OutputFormat
}

func (l LabelFormatter) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"kind":"axis-format","format":%q}`, string(l.Format))), nil
}
