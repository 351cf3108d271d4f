package datamanager

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ndrandal/tickvis/internal/breaker"
	"github.com/ndrandal/tickvis/internal/gpu"
)

// cacheSize bounds how many fetched windows stay resident at once, mirroring
// the range-query server's own mmap cache size.
const cacheSize = 100

// columnHeader mirrors the range-query server's per-column framing line;
// kept as its own type here rather than imported, since the server's is
// unexported and the two sides are only coupled by the wire format.
type columnHeader struct {
	Name       string `json:"name"`
	RecordSize int    `json:"record_size"`
	NumRecords int    `json:"num_records"`
	DataLength int    `json:"data_length"`
}

type responseHeader struct {
	Columns []columnHeader `json:"columns"`
}

// Client fetches column windows from a range-query server, decodes them
// into GPU buffers, and caches the result by content fingerprint.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Device   gpu.Device
	Breakers *breaker.Registry

	mu    sync.Mutex
	cache *lru.Cache[Fingerprint, *BufferHandle]
}

// NewClient builds a data-manager client against a range-query server at
// baseURL, uploading fetched columns through device.
func NewClient(baseURL string, device gpu.Device, breakers *breaker.Registry) *Client {
	cache, err := lru.New[Fingerprint, *BufferHandle](cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which cacheSize
		// never is.
		panic(err)
	}
	return &Client{
		BaseURL:  baseURL,
		HTTP:     &http.Client{},
		Device:   device,
		Breakers: breakers,
		cache:    cache,
	}
}

// Get returns the buffer handle for fp, retained on the caller's behalf.
// A cache hit never touches the network. A miss fetches, decodes, uploads,
// inserts into the cache, and kicks off a best-effort prefetch of the
// adjacent range before returning.
func (c *Client) Get(ctx context.Context, fp Fingerprint) (*BufferHandle, error) {
	c.mu.Lock()
	if h, ok := c.cache.Get(fp); ok {
		c.mu.Unlock()
		return h.Retain(), nil
	}
	c.mu.Unlock()

	h, err := c.fetch(ctx, fp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(fp, h)
	c.mu.Unlock()

	c.prefetch(fp)

	return h.Retain(), nil
}

// prefetch enqueues a speculative load of fp's adjacent range on its own
// goroutine. The contract is best effort: failures are logged, never
// surfaced, and the caller never blocks on it.
func (c *Client) prefetch(fp Fingerprint) {
	next := fp.adjacent()
	go func() {
		c.mu.Lock()
		_, cached := c.cache.Get(next)
		c.mu.Unlock()
		if cached {
			return
		}
		h, err := c.fetch(context.Background(), next)
		if err != nil {
			log.Printf("datamanager: prefetch %s: %v", next, err)
			return
		}
		c.mu.Lock()
		c.cache.Add(next, h)
		c.mu.Unlock()
	}()
}

// WarmTimeSeriesRange issues a speculative load for an explicit window,
// the TimeSeriesRange cache-warming pattern.
func (c *Client) WarmTimeSeriesRange(fp Fingerprint) {
	c.mu.Lock()
	_, cached := c.cache.Get(fp)
	c.mu.Unlock()
	if cached {
		return
	}
	go func() {
		h, err := c.fetch(context.Background(), fp)
		if err != nil {
			log.Printf("datamanager: warm %s: %v", fp, err)
			return
		}
		c.mu.Lock()
		c.cache.Add(fp, h)
		c.mu.Unlock()
	}()
}

// WarmLatestData issues a speculative load for the most recent window of
// width recentWidth up to nowX, the LatestData cache-warming pattern.
func (c *Client) WarmLatestData(symbol, dataType, column string, nowX, recentWidth uint32) {
	start := uint32(0)
	if nowX > recentWidth {
		start = nowX - recentWidth
	}
	c.WarmTimeSeriesRange(Fingerprint{Symbol: symbol, DataType: dataType, Column: column, StartX: start, EndX: nowX})
}

// Cleanup reclaims every cached handle whose strong count is 1 — meaning
// the cache is the only remaining holder, nothing else is still reading
// from it this frame.
func (c *Client) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fp := range c.cache.Keys() {
		h, ok := c.cache.Peek(fp)
		if ok && h.StrongCount() <= 1 {
			c.cache.Remove(fp)
		}
	}
}

func (c *Client) fetch(ctx context.Context, fp Fingerprint) (*BufferHandle, error) {
	req, err := c.request(ctx, fp)
	if err != nil {
		return nil, err
	}

	var handle *BufferHandle
	err = c.Breakers.Do(breaker.DataManager, func() error {
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("datamanager: %s: status %d", fp, resp.StatusCode)
		}

		data, err := c.decode(ctx, resp.Body, fp)
		if err != nil {
			return err
		}
		handle = newHandle(fp, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *Client) request(ctx context.Context, fp Fingerprint) (*http.Request, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", fp.Symbol)
	q.Set("type", fp.DataType)
	q.Set("columns", fp.Column)
	q.Set("start", strconv.FormatUint(uint64(fp.StartX), 10))
	q.Set("end", strconv.FormatUint(uint64(fp.EndX), 10))
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// decode parses the newline-terminated JSON header and, for each declared
// column, slices data_length bytes off the remaining stream and uploads
// them into a GPU buffer with usage VERTEX | STORAGE | COPY_DST (the
// backend's Buffer abstraction has no distinct VERTEX flag, so this is
// expressed as UsageStorage|UsageCopyDst, the closest analog it exposes).
func (c *Client) decode(ctx context.Context, r io.Reader, fp Fingerprint) (*BufferData, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("datamanager: read header: %w", err)
	}
	var header responseHeader
	if err := json.Unmarshal([]byte(line), &header); err != nil {
		return nil, fmt.Errorf("datamanager: parse header: %w", err)
	}

	data := &BufferData{
		Symbol:   fp.Symbol,
		DataType: fp.DataType,
		StartX:   fp.StartX,
		EndX:     fp.EndX,
		Columns:  make(map[string]ColumnBuffer, len(header.Columns)),
	}

	for _, col := range header.Columns {
		raw := make([]byte, col.DataLength)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, fmt.Errorf("datamanager: read column %q: %w", col.Name, err)
		}
		values, err := decodeColumn(col.Name, raw)
		if err != nil {
			return nil, err
		}

		buf, err := c.Device.CreateBuffer(len(values), gpu.UsageStorage|gpu.UsageCopyDst)
		if err != nil {
			return nil, fmt.Errorf("datamanager: allocate buffer for %q: %w", col.Name, err)
		}
		if err := buf.Write(ctx, 0, values); err != nil {
			return nil, fmt.Errorf("datamanager: upload column %q: %w", col.Name, err)
		}

		data.Columns[col.Name] = ColumnBuffer{
			Name:     col.Name,
			RowCount: col.NumRecords,
			StartX:   fp.StartX,
			EndX:     fp.EndX,
			Buffer:   buf,
		}
		if col.NumRecords > data.RowCount {
			data.RowCount = col.NumRecords
		}
	}
	return data, nil
}

// rawUint32Columns names the columns tick.EncodeMarketDataColumn/
// EncodeTradeColumn write as plain little-endian integers rather than
// IEEE-754 float32 bit patterns.
var rawUint32Columns = map[string]bool{"time": true, "nanos": true, "side": true}

// decodeColumn reinterprets one column's raw bytes as float32s, honoring
// tick's per-column wire encoding: timestamps and side are plain integers
// cast to float (exact up to 2^24; larger values, such as Unix-second
// timestamps, are rounded to the nearest float32), everything else is an
// IEEE-754 float32 bit pattern. The
// 8-byte trade id and 16-byte order-id columns have no meaningful float32
// rendition and are rejected; nothing in the render pipeline needs them.
func decodeColumn(name string, raw []byte) ([]float32, error) {
	switch name {
	case "maker_order_id", "taker_order_id":
		return nil, fmt.Errorf("datamanager: column %q has no float32 rendition", name)
	case "id":
		n := len(raw) / 8
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = float32(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
		}
		return out, nil
	}

	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		if rawUint32Columns[name] {
			out[i] = float32(bits)
		} else {
			out[i] = math.Float32frombits(bits)
		}
	}
	return out, nil
}
