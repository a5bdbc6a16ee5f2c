// Package format renders raw warehouse values for display.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"metricql/internal/domain"
)

// Layouts used for time values.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// defaultDecimals is the number of fraction digits shown when a format does
// not set Round. Trailing zeros are trimmed in that case.
const defaultDecimals = 3

// Options controls formatting.
type Options struct {
	// OnlyRaw skips number formats; time values are still normalised.
	OnlyRaw bool
}

var printer = message.NewPrinter(language.English)

// FormatRows formats every cell of rows. Rows are keyed by field id and only
// columns present in fields are kept. The input rows are not modified.
func FormatRows(rows []domain.Row, fields map[string]domain.Item, opts Options) []domain.ResultRow {
	out := make([]domain.ResultRow, len(rows))
	for i, row := range rows {
		formatted := make(domain.ResultRow, len(fields))
		for id, item := range fields {
			raw, ok := row[id]
			if !ok {
				continue
			}
			formatted[id] = domain.ResultCell{Value: domain.ResultValue{
				Raw:       raw,
				Formatted: FormatValue(item, raw, opts),
			}}
		}
		out[i] = formatted
	}
	return out
}

// FormatValue formats a single value. Nil values format as "".
func FormatValue(item domain.Item, v any, opts Options) string {
	if v == nil {
		return ""
	}
	switch item.Type {
	case domain.DimensionTimestamp:
		if t, ok := toTime(v); ok {
			return t.UTC().Format(TimestampLayout)
		}
	case domain.DimensionDate:
		if t, ok := toTime(v); ok {
			return t.UTC().Format(DateLayout)
		}
	case domain.DimensionBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return "True"
			}
			return "False"
		}
	case domain.DimensionNumber:
		if !opts.OnlyRaw {
			if f, ok := toFloat(v); ok {
				return FormatNumber(f, item.Format)
			}
		}
	}
	return rawString(v)
}

// FormatNumber renders f according to a field format.
func FormatNumber(f float64, format domain.FieldFormat) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if format.Type == domain.FormatID {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	prefix, suffix := format.Prefix, format.Suffix
	decimals, trim := defaultDecimals, true
	if format.Round != nil {
		decimals, trim = max(*format.Round, 0), false
	}
	switch format.Type {
	case domain.FormatPercent:
		f *= 100
		suffix = "%" + suffix
		if format.Round == nil {
			decimals = 0
		}
	case domain.FormatCurrency:
		prefix += currencySymbol(format.Currency)
		if format.Round == nil {
			decimals, trim = 2, false
		}
	case domain.FormatKm:
		suffix = " km" + suffix
	case domain.FormatMi:
		suffix = " mi" + suffix
	}

	unit := ""
	if div, u, ok := compactDivisor(format.Compact); ok {
		f /= div
		unit = u
	}

	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}
	num := printer.Sprintf("%."+strconv.Itoa(decimals)+"f", f)
	if trim && strings.Contains(num, ".") {
		num = strings.TrimRight(strings.TrimRight(num, "0"), ".")
	}
	if strings.Trim(num, "0.,") == "" {
		sign = ""
	}
	return sign + prefix + applySeparator(num, format.Separator) + unit + suffix
}

func compactDivisor(c domain.CompactUnit) (float64, string, bool) {
	switch c {
	case domain.CompactThousands:
		return 1e3, "K", true
	case domain.CompactMillions:
		return 1e6, "M", true
	case domain.CompactBillions:
		return 1e9, "B", true
	case domain.CompactTrillions:
		return 1e12, "T", true
	}
	return 0, "", false
}

// applySeparator rewrites a "1,234.5" number into the requested style.
func applySeparator(num string, sep domain.NumberSeparator) string {
	switch sep {
	case domain.SeparatorPeriodComma:
		return strings.NewReplacer(",", ".", ".", ",").Replace(num)
	case domain.SeparatorSpacePeriod:
		return strings.ReplaceAll(num, ",", " ")
	case domain.SeparatorNoSeparatorPeriod:
		return strings.ReplaceAll(num, ",", "")
	}
	return num
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"BRL": "R$",
	"CAD": "CA$",
	"AUD": "A$",
}

func currencySymbol(code string) string {
	if code == "" {
		return "$"
	}
	if s, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return s
	}
	return strings.ToUpper(code) + " "
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

type float64er interface {
	Float64() float64
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case float64er:
		return n.Float64(), true
	}
	return 0, false
}

func rawString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
