// Package columnfile implements the on-disk directory scheme and naming
// convention for per-column binary files.
package columnfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Category distinguishes market-data (quote) files from executed-trade files.
type Category string

const (
	MD     Category = "MD"
	Trades Category = "TRADES"
)

// RecordSize is the fixed per-record width, in bytes, for every currently
// supported column except the 16-byte order-id columns and the 8-byte
// trade id column.
const RecordSize = 4

// OrderIDRecordSize is the width of the maker/taker order id columns.
const OrderIDRecordSize = 16

// TradeIDRecordSize is the width of the trade id column (a uint64).
const TradeIDRecordSize = 8

// SanitizeSymbol substitutes '/' with '_' so symbols are safe path segments.
func SanitizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "_")
}

// DateSuffix renders a date as the DD.MM.YY suffix used in file names.
func DateSuffix(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%02d", t.Day(), t.Month(), t.Year()%100)
}

// Dir returns the directory holding a (exchange, symbol, category)'s column
// files: <root>/<exchange>/<symbol>/<MD|TRADES>.
func Dir(root, exchange, symbol string, cat Category) string {
	return filepath.Join(root, exchange, SanitizeSymbol(symbol), string(cat))
}

// Path returns the full path to one column's file for one calendar day.
func Path(root, exchange, symbol string, cat Category, column string, day time.Time) string {
	name := fmt.Sprintf("%s.%s.bin", column, DateSuffix(day))
	return filepath.Join(Dir(root, exchange, symbol, cat), name)
}

// ParseDateSuffix parses a DD.MM.YY suffix back into a UTC date. Two-digit
// years follow time.Parse: 00-68 become 2000-2068 and 69-99 become 1969-1999.
func ParseDateSuffix(suffix string) (time.Time, error) {
	t, err := time.Parse("02.01.06", suffix)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date suffix %q: %w", suffix, err)
	}
	return t.UTC(), nil
}

// DayGroup is every column file sharing one (directory, date-suffix) pair,
// i.e. one symbol/category's complete set of columns for a single day.
type DayGroup struct {
	Dir       string // <root>/<exchange>/<symbol>/<MD|TRADES>
	Day       string // DD.MM.YY
	Files     []string
	TotalSize int64
}

// WalkDayGroups walks root and groups every "*.bin" column file by
// (directory, date suffix), used by both retention (local pruning) and
// archive (cold-storage upload) to operate on whole days at a time rather
// than individual column files.
func WalkDayGroups(root string) ([]DayGroup, error) {
	groups := make(map[string]*DayGroup)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".bin") {
			return nil
		}
		day := daySuffixFromFilename(filepath.Base(path))
		if day == "" {
			return nil
		}
		dir := filepath.Dir(path)
		key := dir + "|" + day
		g, ok := groups[key]
		if !ok {
			g = &DayGroup{Dir: dir, Day: day}
			groups[key] = g
		}
		g.Files = append(g.Files, path)
		g.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	out := make([]DayGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out, nil
}

// daySuffixFromFilename extracts the DD.MM.YY suffix from a
// "<column>.<DD>.<MM>.<YY>.bin" filename, or "" if the name doesn't match.
func daySuffixFromFilename(name string) string {
	name = strings.TrimSuffix(name, ".bin")
	parts := strings.Split(name, ".")
	if len(parts) < 4 {
		return ""
	}
	return strings.Join(parts[len(parts)-3:], ".")
}

// RecordSizeFor returns the fixed record width for a column name. Order-id
// columns are 16 bytes, the trade "id" column is 8 bytes, and every other
// currently supported column is 4 bytes.
// Widths are asserted here, not parameterized at call sites.
func RecordSizeFor(column string) int {
	switch column {
	case "maker_order_id", "taker_order_id":
		return OrderIDRecordSize
	case "id":
		return TradeIDRecordSize
	default:
		return RecordSize
	}
}
