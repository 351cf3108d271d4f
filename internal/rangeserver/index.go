package rangeserver

import (
	"encoding/binary"
	"sort"
)

// resolveRange binary-searches a mapped timestamp_secs column for the
// half-open row range [startIdx, endIdx) covering [startSecs, endSecs].
// The column is assumed non-decreasing within a day, matching how the
// ingestion path appends records in composite-key order before flushing.
func resolveRange(tsCol *MappedColumn, startSecs, endSecs uint32) (startIdx, endIdx int) {
	rows := tsCol.Rows()
	at := func(i int) uint32 {
		off := i * 4
		return binary.LittleEndian.Uint32(tsCol.Data[off : off+4])
	}

	startIdx = sort.Search(rows, func(i int) bool { return at(i) >= startSecs })
	endIdx = sort.Search(rows, func(i int) bool { return at(i) > endSecs })
	if endIdx < startIdx {
		endIdx = startIdx
	}
	return startIdx, endIdx
}
