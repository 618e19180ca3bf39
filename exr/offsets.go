package exr

import (
	"github.com/exrlab/goexr/internal/xdr"
)

// OffsetTable is a part's chunk offset table: the byte position, from the
// start of the file, of each scanline block or tile. Entries are written in
// the order chunks appear in the part (scanline blocks by line order, tiles
// by increasing level then row-major within a level).
type OffsetTable []int64

// readOffsetTable reads n int64 offsets from r.
func readOffsetTable(r *xdr.Reader, n int) (OffsetTable, error) {
	table := make(OffsetTable, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt64()
		if err != nil {
			return nil, ErrInvalidFile
		}
		table[i] = v
	}
	return table, nil
}

// writePlaceholderOffsetTable writes n zeroed int64 slots (8*n bytes).
func writePlaceholderOffsetTable(w *xdr.BufferWriter, n int) {
	for i := 0; i < n; i++ {
		w.WriteInt64(0)
	}
}

// offsetTableNeedsReconstruction reports whether table has any zero entry,
// which signals a chunk written through a finish/close path that never ran
// (see reconstructOffsetTable).
func offsetTableNeedsReconstruction(table OffsetTable) bool {
	for _, off := range table {
		if off == 0 {
			return true
		}
	}
	return false
}

// reconstructOffsetTable scans raw for chunk boundaries starting at
// chunkStart, rebuilding an offset table of numChunks entries for a part
// whose stored table is zero or otherwise unusable. tiled selects between
// the scanline (y + size) and tiled (tileX, tileY, levelX, levelY + size)
// chunk header shapes.
func reconstructOffsetTable(raw []byte, chunkStart int64, numChunks int, tiled bool) (OffsetTable, error) {
	table := make(OffsetTable, 0, numChunks)
	pos := chunkStart
	headerSize := int64(8)
	if tiled {
		headerSize = 20
	}
	for i := 0; i < numChunks; i++ {
		if pos+headerSize > int64(len(raw)) {
			break
		}
		table = append(table, pos)
		var size uint32
		if tiled {
			size = xdr.ByteOrder.Uint32(raw[pos+16 : pos+20])
		} else {
			size = xdr.ByteOrder.Uint32(raw[pos+4 : pos+8])
		}
		pos += headerSize + int64(size)
	}
	return table, nil
}
