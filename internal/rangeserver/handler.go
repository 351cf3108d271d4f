package rangeserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndrandal/tickvis/internal/columnfile"
	"github.com/ndrandal/tickvis/internal/tick"
)

// dayPlan is one calendar day's worth of resolved row range and mapped
// columns, ready to be streamed. Internal bookkeeping only; never
// serialized directly.
type dayPlan struct {
	Day      string
	Rows     int
	columns  map[string]*MappedColumn
	startIdx int
	endIdx   int
}

// columnHeader describes one column's framing within the body: how many
// fixed-width records it holds and how many bytes it occupies, so a client
// can slice the raw stream without re-deriving record counts itself.
type columnHeader struct {
	Name       string `json:"name"`
	RecordSize int    `json:"record_size"`
	NumRecords int    `json:"num_records"`
	DataLength int    `json:"data_length"`
}

// responseHeader is the first newline-terminated JSON line of every
// response: enough metadata for a client to know how to slice the raw
// bytes that follow it.
type responseHeader struct {
	Columns []columnHeader `json:"columns"`
}

// Handler serves GET /api/data, streaming column-major byte ranges out of
// memory-mapped files without ever copying a record into an intermediate
// buffer.
type Handler struct {
	Cache *Cache

	// DefaultExchange is used when a request omits the exchange parameter,
	// kept for compatibility with callers written before multi-exchange
	// ingestion existed.
	DefaultExchange string
}

func NewHandler(cache *Cache) *Handler {
	return &Handler{Cache: cache, DefaultExchange: "coinbase"}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	exchange := q.Get("exchange")
	symbol := q.Get("symbol")
	dataType := q.Get("type")
	columnsParam := q.Get("columns")
	startParam := q.Get("start")
	endParam := q.Get("end")

	if symbol == "" || dataType == "" || columnsParam == "" || startParam == "" || endParam == "" {
		httpError(w, http.StatusBadRequest, "symbol, type, columns, start and end are all required")
		return
	}
	if exchange == "" {
		exchange = h.DefaultExchange
	}

	cat := columnfile.Category(dataType)
	if cat != columnfile.MD && cat != columnfile.Trades {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown type %q", dataType))
		return
	}

	columns := strings.Split(columnsParam, ",")
	valid := validColumnSet(cat)
	for _, c := range columns {
		if !valid[c] {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown column %q for type %s", c, dataType))
			return
		}
	}

	start, err := strconv.ParseUint(startParam, 10, 32)
	if err != nil {
		httpError(w, http.StatusBadRequest, "start must be a unix timestamp")
		return
	}
	end, err := strconv.ParseUint(endParam, 10, 32)
	if err != nil {
		httpError(w, http.StatusBadRequest, "end must be a unix timestamp")
		return
	}
	if end < start {
		httpError(w, http.StatusBadRequest, "end must be >= start")
		return
	}

	days := enumerateDays(time.Unix(int64(start), 0).UTC(), time.Unix(int64(end), 0).UTC())

	plans, err := h.buildPlans(exchange, symbol, cat, columns, days, uint32(start), uint32(end))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	header := responseHeader{Columns: buildColumnHeaders(columns, plans)}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		return
	}

	// Column-major: every day's bytes for one column, in column order,
	// before moving to the next column.
	for _, col := range columns {
		for _, plan := range plans {
			mc := plan.columns[col]
			if mc == nil {
				continue
			}
			lo := plan.startIdx * mc.RecordSize
			hi := plan.endIdx * mc.RecordSize
			if _, err := w.Write(mc.Data[lo:hi]); err != nil {
				return
			}
		}
	}
}

// buildColumnHeaders aggregates each requested column's record count and
// byte length across every day plan, in the order the client asked for
// the columns.
func buildColumnHeaders(columns []string, plans []dayPlan) []columnHeader {
	headers := make([]columnHeader, len(columns))
	for i, col := range columns {
		recordSize := columnfile.RecordSizeFor(col)
		numRecords := 0
		for _, plan := range plans {
			if plan.columns[col] != nil {
				numRecords += plan.endIdx - plan.startIdx
			}
		}
		headers[i] = columnHeader{
			Name:       col,
			RecordSize: recordSize,
			NumRecords: numRecords,
			DataLength: numRecords * recordSize,
		}
	}
	return headers
}

// buildPlans resolves, for every requested day, the row range covering
// [start,end] and maps every requested column plus the timestamp_secs
// index column, fanning the per-day work out across goroutines.
func (h *Handler) buildPlans(exchange, symbol string, cat columnfile.Category, columns []string, days []time.Time, start, end uint32) ([]dayPlan, error) {
	plans := make([]dayPlan, len(days))

	g := new(errgroup.Group)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			plan, err := h.planForDay(exchange, symbol, cat, columns, day, start, end)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Days with no on-disk file at all (e.g. a symbol that didn't trade
	// that day) resolve to zero rows and are dropped from the response.
	out := plans[:0]
	for _, p := range plans {
		if p.Rows > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (h *Handler) planForDay(exchange, symbol string, cat columnfile.Category, columns []string, day time.Time, start, end uint32) (dayPlan, error) {
	suffix := columnfile.DateSuffix(day)

	tsKey := CacheKey{Exchange: exchange, Symbol: symbol, DataType: cat, Column: "time", Day: suffix}
	tsCol, err := h.Cache.Get(tsKey)
	if err != nil {
		if isNotExist(err) {
			return dayPlan{Day: suffix}, nil
		}
		return dayPlan{}, fmt.Errorf("day %s: %w", suffix, err)
	}

	startIdx, endIdx := resolveRange(tsCol, start, end)
	if startIdx >= endIdx {
		return dayPlan{Day: suffix}, nil
	}

	mapped := make(map[string]*MappedColumn, len(columns))
	var mu sync.Mutex
	g := new(errgroup.Group)
	for _, col := range columns {
		col := col
		g.Go(func() error {
			key := CacheKey{Exchange: exchange, Symbol: symbol, DataType: cat, Column: col, Day: suffix}
			mc, err := h.Cache.Get(key)
			if err != nil {
				if isNotExist(err) {
					return nil
				}
				return fmt.Errorf("day %s column %s: %w", suffix, col, err)
			}
			mu.Lock()
			mapped[col] = mc
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dayPlan{}, err
	}

	return dayPlan{
		Day:      suffix,
		Rows:     endIdx - startIdx,
		columns:  mapped,
		startIdx: startIdx,
		endIdx:   endIdx,
	}, nil
}

func enumerateDays(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func validColumnSet(cat columnfile.Category) map[string]bool {
	var names []string
	if cat == columnfile.MD {
		names = tick.MarketDataColumns
	} else {
		names = tick.TradeColumns
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
