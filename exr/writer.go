package exr

import (
	"io"

	"github.com/exrlab/goexr/internal/xdr"
)

// Writer serializes one or more parts to an OpenEXR stream: the magic
// number, version field, headers, placeholder offset tables, and then each
// part's chunks as they're written. Closing a Writer seeks back and fills
// in the real offset tables.
type Writer struct {
	w       io.WriteSeeker
	headers []*Header

	multipart bool

	offsetTablePos []int64
	offsets        [][]int64
	nextChunk      []int
}

const fileFormatVersion = 2

// NewMultiPartWriter writes the magic number, version field, every header
// in headers, and a zeroed chunk offset table for each part, leaving the
// stream positioned at the start of chunk data.
func NewMultiPartWriter(w io.WriteSeeker, headers []*Header) (*Writer, error) {
	if len(headers) == 0 {
		return nil, ErrInvalidHeader
	}
	for _, h := range headers {
		if err := h.Validate(); err != nil {
			return nil, err
		}
	}

	multipart := len(headers) > 1
	singleTile := !multipart && headers[0].IsTiled()
	deep := false
	if !multipart {
		t := headerPartType(headers[0])
		deep = t == PartTypeDeepScanline || t == PartTypeDeepTiled
	}

	buf := xdr.NewBufferWriter(1024)
	buf.WriteBytes(MagicNumber)
	buf.WriteUint32(MakeVersionField(fileFormatVersion, singleTile, false, deep, multipart))

	for _, h := range headers {
		if multipart {
			if !h.Has(AttrNameName) || !h.Has(AttrNameType) {
				return nil, ErrInvalidHeader
			}
		}
		if err := WriteHeader(buf, h); err != nil {
			return nil, err
		}
	}
	if multipart {
		buf.WriteByte(0)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, err
	}

	wr := &Writer{w: w, headers: headers, multipart: multipart}
	wr.offsetTablePos = make([]int64, len(headers))
	wr.offsets = make([][]int64, len(headers))
	wr.nextChunk = make([]int, len(headers))

	for i, h := range headers {
		pos, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		wr.offsetTablePos[i] = pos
		numChunks := h.ChunksInFile()
		wr.offsets[i] = make([]int64, numChunks)

		placeholder := xdr.NewBufferWriter(numChunks * 8)
		writePlaceholderOffsetTable(placeholder, numChunks)
		if _, err := w.Write(placeholder.Bytes()); err != nil {
			return nil, err
		}
	}

	return wr, nil
}

// headerPartType returns the header's "type" attribute value, or "" if it
// isn't set or isn't a string.
func headerPartType(h *Header) string {
	attr := h.Get(AttrNameType)
	if attr == nil {
		return ""
	}
	if s, ok := attr.Value.(string); ok {
		return s
	}
	return ""
}

// recordOffset captures the current stream position as the offset of the
// next chunk in part, advancing that part's chunk cursor.
func (wr *Writer) recordOffset(part int) (int64, error) {
	pos, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	idx := wr.nextChunk[part]
	if idx >= len(wr.offsets[part]) {
		return 0, ErrScanlineOutOfRange
	}
	wr.offsets[part][idx] = pos
	wr.nextChunk[part]++
	return pos, nil
}

// WriteChunkPart writes one scanline block for part: an 8-byte header
// (starting scanline, payload size) followed by data.
func (wr *Writer) WriteChunkPart(part int, y int32, data []byte) error {
	if part < 0 || part >= len(wr.headers) {
		return ErrPartNotFound
	}
	if _, err := wr.recordOffset(part); err != nil {
		return err
	}

	buf := xdr.NewBufferWriter(8 + len(data))
	buf.WriteInt32(y)
	buf.WriteUint32(uint32(len(data)))
	buf.WriteBytes(data)
	_, err := wr.w.Write(buf.Bytes())
	return err
}

// WriteTileChunkPart writes one tile for part: a 20-byte header (tile and
// level coordinates, payload size) followed by data.
func (wr *Writer) WriteTileChunkPart(part, tileX, tileY, levelX, levelY int, data []byte) error {
	if part < 0 || part >= len(wr.headers) {
		return ErrPartNotFound
	}

	h := wr.headers[part]
	idx := tileChunkIndex(h, tileX, tileY, levelX, levelY)
	if idx < 0 || idx >= len(wr.offsets[part]) {
		return ErrTileOutOfRange
	}
	pos, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	wr.offsets[part][idx] = pos

	buf := xdr.NewBufferWriter(20 + len(data))
	buf.WriteInt32(int32(tileX))
	buf.WriteInt32(int32(tileY))
	buf.WriteInt32(int32(levelX))
	buf.WriteInt32(int32(levelY))
	buf.WriteUint32(uint32(len(data)))
	buf.WriteBytes(data)
	_, werr := wr.w.Write(buf.Bytes())
	return werr
}

// Close seeks back to each part's offset table and fills in the real
// chunk offsets, then restores the stream position to the end of the file.
func (wr *Writer) Close() error {
	end, err := wr.w.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	for i, offsets := range wr.offsets {
		if _, err := wr.w.Seek(wr.offsetTablePos[i], io.SeekStart); err != nil {
			return err
		}
		table := xdr.NewBufferWriter(len(offsets) * 8)
		for _, off := range offsets {
			table.WriteInt64(off)
		}
		if _, err := wr.w.Write(table.Bytes()); err != nil {
			return err
		}
	}

	_, err = wr.w.Seek(end, io.SeekStart)
	return err
}
