package rangeserver

import (
	"encoding/binary"
	"testing"
)

func fakeTimeColumn(values ...uint32) *MappedColumn {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return &MappedColumn{Data: data, RecordSize: 4}
}

func TestResolveRangeMiddle(t *testing.T) {
	col := fakeTimeColumn(100, 101, 102, 103, 104)
	start, end := resolveRange(col, 101, 103)
	if start != 1 || end != 4 {
		t.Fatalf("got [%d,%d), want [1,4)", start, end)
	}
}

func TestResolveRangeEntirelyBefore(t *testing.T) {
	col := fakeTimeColumn(100, 101, 102)
	start, end := resolveRange(col, 50, 60)
	if start != end {
		t.Fatalf("expected empty range, got [%d,%d)", start, end)
	}
}

func TestResolveRangeEntirelyAfter(t *testing.T) {
	col := fakeTimeColumn(100, 101, 102)
	start, end := resolveRange(col, 200, 300)
	if start != end {
		t.Fatalf("expected empty range, got [%d,%d)", start, end)
	}
}
