package exr

import (
	"bytes"
	"io"

	"github.com/exrlab/goexr/internal/xdr"
)

// MagicNumber is the four bytes every OpenEXR file starts with.
var MagicNumber = []byte{0x76, 0x2f, 0x31, 0x01}

// Version field bit layout, following the OpenEXR file format: the low
// byte holds the format version, the rest are feature flags.
const (
	versionNumberMask    = 0xff
	versionFlagTile      = 1 << 9
	versionFlagLongName  = 1 << 10
	versionFlagDeep      = 1 << 11
	versionFlagMultiPart = 1 << 12

	// supportedVersion is the only format version number this package
	// knows how to parse.
	supportedVersion = 2

	// knownVersionFlags is the union of every feature flag bit this
	// package interprets. unknownFlagsMask is everything above the
	// version number byte that isn't one of those bits; a version field
	// with any of those bits set declares a feature this package was
	// never taught to read.
	knownVersionFlags = versionFlagTile | versionFlagLongName | versionFlagDeep | versionFlagMultiPart
	unknownFlagsMask  = ^uint32(versionNumberMask) &^ knownVersionFlags
)

// MakeVersionField packs the version field written right after the magic
// number: a version number plus the tiled, long-name, deep, and multi-part
// feature flags.
func MakeVersionField(version int, singleTile, longName, deep, multipart bool) uint32 {
	v := uint32(version) & versionNumberMask
	if singleTile {
		v |= versionFlagTile
	}
	if longName {
		v |= versionFlagLongName
	}
	if deep {
		v |= versionFlagDeep
	}
	if multipart {
		v |= versionFlagMultiPart
	}
	return v
}

// partRecord holds one part's parsed header and chunk offset table.
type partRecord struct {
	header  *Header
	offsets OffsetTable
}

// File is a parsed, read-only view of an OpenEXR file: its version flags,
// every part's header, and each part's chunk offset table. Pixel data is
// read lazily through ScanlineReader, TiledReader, or the deep readers.
type File struct {
	raw       []byte
	closer    io.Closer
	version   int
	tiled     bool
	longName  bool
	deep      bool
	multipart bool
	parts     []*partRecord
}

// OpenReader parses an OpenEXR file from r, which must support random
// access over exactly size bytes.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	if size < 8 {
		return nil, ErrInvalidFile
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), raw); err != nil {
		return nil, ErrInvalidFile
	}
	if !bytes.Equal(raw[:4], MagicNumber) {
		return nil, ErrInvalidFile
	}

	versionField := xdr.ByteOrder.Uint32(raw[4:8])
	if int(versionField&versionNumberMask) != supportedVersion {
		return nil, ErrUnsupportedVersion
	}
	if versionField&unknownFlagsMask != 0 {
		return nil, ErrUnsupportedVersion
	}

	f := &File{
		raw:       raw,
		version:   int(versionField & versionNumberMask),
		tiled:     versionField&versionFlagTile != 0,
		longName:  versionField&versionFlagLongName != 0,
		deep:      versionField&versionFlagDeep != 0,
		multipart: versionField&versionFlagMultiPart != 0,
	}

	xr := xdr.NewReader(raw[8:])

	var headers []*Header
	if f.multipart {
		hs, err := readMultipartHeaders(xr)
		if err != nil {
			return nil, err
		}
		headers = hs
	} else {
		h, err := ReadHeader(xr)
		if err != nil {
			return nil, ErrInvalidFile
		}
		headers = []*Header{h}
	}

	for _, h := range headers {
		numChunks := h.ChunksInFile()
		offsets, err := readOffsetTable(xr, numChunks)
		if err != nil {
			return nil, err
		}

		// Reconstruction requires scanning forward from the first byte of
		// chunk data, which is only unambiguous for single-part files: in a
		// multi-part file, more parts' offset tables may still follow this
		// one before chunk data actually begins.
		if !f.multipart && !f.deep && offsetTableNeedsReconstruction(offsets) {
			chunkStart := int64(8 + xr.Pos())
			if rebuilt, rerr := reconstructOffsetTable(raw, chunkStart, numChunks, h.IsTiled()); rerr == nil && len(rebuilt) > 0 {
				offsets = rebuilt
			}
		}

		f.parts = append(f.parts, &partRecord{header: h, offsets: offsets})
	}

	return f, nil
}

// readMultipartHeaders reads a multi-part file's header list: one header
// per part, each self-terminated, with the whole list closed by one extra
// empty-name marker.
func readMultipartHeaders(r *xdr.Reader) ([]*Header, error) {
	var headers []*Header
	for {
		h, err := ReadHeader(r)
		if err != nil {
			return nil, ErrInvalidFile
		}
		headers = append(headers, h)

		pos := r.Pos()
		name, err := r.ReadString()
		if err != nil {
			return nil, ErrInvalidFile
		}
		if name == "" {
			break
		}
		if err := r.SetPos(pos); err != nil {
			return nil, ErrInvalidFile
		}
	}
	return headers, nil
}

func (f *File) part(index int) *partRecord {
	if index < 0 || index >= len(f.parts) {
		return nil
	}
	return f.parts[index]
}

// NumParts returns the number of parts in the file.
func (f *File) NumParts() int {
	return len(f.parts)
}

// Header returns the header for part, or nil if part is out of range.
func (f *File) Header(part int) *Header {
	p := f.part(part)
	if p == nil {
		return nil
	}
	return p.header
}

// Version returns the file format version number.
func (f *File) Version() int {
	return f.version
}

// VersionField returns the packed version field: the version number plus
// the tiled, long-name, deep, and multi-part flags.
func (f *File) VersionField() uint32 {
	return MakeVersionField(f.version, f.tiled, f.longName, f.deep, f.multipart)
}

// IsTiled reports whether the file's version field carries the single-tile
// flag. Multi-part files should prefer Header(part).IsTiled() instead.
func (f *File) IsTiled() bool {
	return f.tiled
}

// IsDeep reports whether the file's version field carries the deep-data
// flag.
func (f *File) IsDeep() bool {
	return f.deep
}

// IsMultiPart reports whether the file carries more than one part.
func (f *File) IsMultiPart() bool {
	return f.multipart
}

// Close releases the underlying file handle or mapping, if one was opened
// by OpenFile or OpenFileMmap.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Offsets returns the chunk offset table for part.
func (f *File) Offsets(part int) []int64 {
	p := f.part(part)
	if p == nil {
		return nil
	}
	return []int64(p.offsets)
}

// OffsetsRef is an alias for Offsets, used internally by readers that treat
// the table as read-only.
func (f *File) OffsetsRef(part int) []int64 {
	return f.Offsets(part)
}

// readScanlineChunk reads the raw (still compressed) scanline block at
// chunkIndex in part, returning its starting scanline and payload.
func (f *File) readScanlineChunk(part, chunkIndex int) (int32, []byte, error) {
	p := f.part(part)
	if p == nil {
		return 0, nil, ErrPartNotFound
	}
	if chunkIndex < 0 || chunkIndex >= len(p.offsets) {
		return 0, nil, ErrScanlineOutOfRange
	}
	off := p.offsets[chunkIndex]
	if off < 0 || off+8 > int64(len(f.raw)) {
		return 0, nil, ErrMissingBlock
	}
	y := int32(xdr.ByteOrder.Uint32(f.raw[off : off+4]))
	size := xdr.ByteOrder.Uint32(f.raw[off+4 : off+8])
	start := off + 8
	end := start + int64(size)
	if end > int64(len(f.raw)) {
		return 0, nil, ErrMissingBlock
	}
	return y, f.raw[start:end], nil
}

// readTileChunk reads the raw (still compressed) tile at chunkIndex in
// part, returning its tile and level coordinates and payload.
func (f *File) readTileChunk(part, chunkIndex int) (TileCoord, []byte, error) {
	p := f.part(part)
	if p == nil {
		return TileCoord{}, nil, ErrPartNotFound
	}
	if chunkIndex < 0 || chunkIndex >= len(p.offsets) {
		return TileCoord{}, nil, ErrTileOutOfRange
	}
	off := p.offsets[chunkIndex]
	if off < 0 || off+20 > int64(len(f.raw)) {
		return TileCoord{}, nil, ErrMissingBlock
	}
	coord := TileCoord{
		TileX:  int32(xdr.ByteOrder.Uint32(f.raw[off : off+4])),
		TileY:  int32(xdr.ByteOrder.Uint32(f.raw[off+4 : off+8])),
		LevelX: int32(xdr.ByteOrder.Uint32(f.raw[off+8 : off+12])),
		LevelY: int32(xdr.ByteOrder.Uint32(f.raw[off+12 : off+16])),
	}
	size := xdr.ByteOrder.Uint32(f.raw[off+16 : off+20])
	start := off + 20
	end := start + int64(size)
	if end > int64(len(f.raw)) {
		return TileCoord{}, nil, ErrMissingBlock
	}
	return coord, f.raw[start:end], nil
}

// ReadDeepChunk reads a deep scanline chunk directly, returning its
// starting scanline, its compressed sample count table, and its compressed
// pixel data.
func (f *File) ReadDeepChunk(part, chunkIndex int) (int32, []byte, []byte, error) {
	p := f.part(part)
	if p == nil {
		return 0, nil, nil, ErrPartNotFound
	}
	if chunkIndex < 0 || chunkIndex >= len(p.offsets) {
		return 0, nil, nil, ErrScanlineOutOfRange
	}
	off := p.offsets[chunkIndex]
	if off < 0 || off+20 > int64(len(f.raw)) {
		return 0, nil, nil, ErrMissingBlock
	}
	y := int32(xdr.ByteOrder.Uint32(f.raw[off : off+4]))
	sampleCountSize := xdr.ByteOrder.Uint64(f.raw[off+4 : off+12])
	pixelDataSize := xdr.ByteOrder.Uint64(f.raw[off+12 : off+20])

	sampleStart := off + 20
	sampleEnd := sampleStart + int64(sampleCountSize)
	pixelEnd := sampleEnd + int64(pixelDataSize)
	if pixelEnd > int64(len(f.raw)) {
		return 0, nil, nil, ErrMissingBlock
	}
	return y, f.raw[sampleStart:sampleEnd], f.raw[sampleEnd:pixelEnd], nil
}

// ReadDeepTileChunk reads a deep tile chunk directly, returning its tile
// coordinates, its compressed sample count table, and its compressed pixel
// data.
func (f *File) ReadDeepTileChunk(part, chunkIndex int) (TileCoord, []byte, []byte, error) {
	p := f.part(part)
	if p == nil {
		return TileCoord{}, nil, nil, ErrPartNotFound
	}
	if chunkIndex < 0 || chunkIndex >= len(p.offsets) {
		return TileCoord{}, nil, nil, ErrTileOutOfRange
	}
	off := p.offsets[chunkIndex]
	if off < 0 || off+32 > int64(len(f.raw)) {
		return TileCoord{}, nil, nil, ErrMissingBlock
	}
	coord := TileCoord{
		TileX:  int32(xdr.ByteOrder.Uint32(f.raw[off : off+4])),
		TileY:  int32(xdr.ByteOrder.Uint32(f.raw[off+4 : off+8])),
		LevelX: int32(xdr.ByteOrder.Uint32(f.raw[off+8 : off+12])),
		LevelY: int32(xdr.ByteOrder.Uint32(f.raw[off+12 : off+16])),
	}
	sampleCountSize := xdr.ByteOrder.Uint64(f.raw[off+16 : off+24])
	pixelDataSize := xdr.ByteOrder.Uint64(f.raw[off+24 : off+32])

	sampleStart := off + 32
	sampleEnd := sampleStart + int64(sampleCountSize)
	pixelEnd := sampleEnd + int64(pixelDataSize)
	if pixelEnd > int64(len(f.raw)) {
		return coord, nil, nil, ErrMissingBlock
	}
	return coord, f.raw[sampleStart:sampleEnd], f.raw[sampleEnd:pixelEnd], nil
}

// TileCoord identifies a tile's position and resolution level, as read back
// from a tile chunk's header.
type TileCoord struct {
	TileX, TileY, LevelX, LevelY int32
}
