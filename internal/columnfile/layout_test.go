package columnfile

import (
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	day := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	got := Path("/mnt/md/data", "coinbase", "BTC/USD", MD, "time", day)
	want := "/mnt/md/data/coinbase/BTC_USD/MD/time.05.03.26.bin"
	if got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestRecordSizeFor(t *testing.T) {
	if RecordSizeFor("time") != 4 {
		t.Fatalf("time record size should be 4")
	}
	if RecordSizeFor("maker_order_id") != 16 {
		t.Fatalf("maker_order_id record size should be 16")
	}
}
