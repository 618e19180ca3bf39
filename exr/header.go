package exr

import (
	"sort"

	"github.com/exrlab/goexr/compression"
	"github.com/exrlab/goexr/internal/xdr"
)

// DefaultDWACompressionLevel is the quantization quality OpenEXR's DWA
// compressors use when a header doesn't specify one explicitly.
const DefaultDWACompressionLevel = 45.0

const attrNameDWACompressionLevel = "dwaCompressionLevel"

// Header is an ordered collection of named attributes describing one part
// of an OpenEXR file: its channels, windows, compression, and any custom
// metadata. Attribute order on disk is always alphabetical by name,
// regardless of insertion order.
type Header struct {
	attrs map[string]*Attribute

	zipLevel          compression.CompressionLevel
	detectedFLevel    compression.FLevel
	hasDetectedFLevel bool
}

// NewHeader returns an empty header with no attributes set.
func NewHeader() *Header {
	return &Header{
		attrs:    make(map[string]*Attribute),
		zipLevel: compression.CompressionLevelDefault,
	}
}

// NewScanlineHeader returns a header for a width x height scanline image
// with three half-float RGB channels, ZIP compression, and the standard
// window/aspect defaults.
func NewScanlineHeader(width, height int) *Header {
	h := NewHeader()

	cl := NewChannelList()
	cl.Add(NewChannel("R", PixelTypeHalf))
	cl.Add(NewChannel("G", PixelTypeHalf))
	cl.Add(NewChannel("B", PixelTypeHalf))
	h.SetChannels(cl)

	h.SetCompression(CompressionZIP)
	window := Box2i{Min: V2i{0, 0}, Max: V2i{int32(width - 1), int32(height - 1)}}
	h.SetDataWindow(window)
	h.SetDisplayWindow(window)
	h.SetLineOrder(LineOrderIncreasing)
	h.SetPixelAspectRatio(1.0)
	h.SetScreenWindowCenter(V2f{0, 0})
	h.SetScreenWindowWidth(1.0)

	return h
}

// NewTiledHeader returns a header like NewScanlineHeader but marked tiled
// with the given tile size, a single resolution level, rounded down.
func NewTiledHeader(width, height, tileWidth, tileHeight int) *Header {
	h := NewScanlineHeader(width, height)
	h.SetTileDescription(TileDescription{
		XSize:        uint32(tileWidth),
		YSize:        uint32(tileHeight),
		Mode:         LevelModeOne,
		RoundingMode: LevelRoundDown,
	})
	return h
}

// Set stores attr under its own name, replacing any existing attribute with
// that name.
func (h *Header) Set(attr *Attribute) {
	h.attrs[attr.Name] = attr
}

// Get returns the attribute named name, or nil if it isn't set.
func (h *Header) Get(name string) *Attribute {
	return h.attrs[name]
}

// Has reports whether an attribute named name is set.
func (h *Header) Has(name string) bool {
	_, ok := h.attrs[name]
	return ok
}

// Remove deletes the attribute named name, if present.
func (h *Header) Remove(name string) {
	delete(h.attrs, name)
}

// Attributes returns every attribute in alphabetical order by name.
func (h *Header) Attributes() []*Attribute {
	names := h.sortedAttributeNames()
	out := make([]*Attribute, len(names))
	for i, name := range names {
		out[i] = h.attrs[name]
	}
	return out
}

func (h *Header) sortedAttributeNames() []string {
	names := make([]string, 0, len(h.attrs))
	for name := range h.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channels returns the header's channel list, or nil if unset.
func (h *Header) Channels() *ChannelList {
	if attr := h.Get(AttrNameChannels); attr != nil {
		if cl, ok := attr.Value.(*ChannelList); ok {
			return cl
		}
	}
	return nil
}

// SetChannels sets the header's channel list.
func (h *Header) SetChannels(cl *ChannelList) {
	h.Set(&Attribute{Name: AttrNameChannels, Type: AttrTypeChlist, Value: cl})
}

// Compression returns the header's compression method, defaulting to
// CompressionNone if unset.
func (h *Header) Compression() Compression {
	if attr := h.Get(AttrNameCompression); attr != nil {
		if c, ok := attr.Value.(Compression); ok {
			return c
		}
	}
	return CompressionNone
}

// SetCompression sets the header's compression method.
func (h *Header) SetCompression(c Compression) {
	h.Set(&Attribute{Name: AttrNameCompression, Type: AttrTypeCompression, Value: c})
}

// DataWindow returns the header's data window, or a zero Box2i if unset.
func (h *Header) DataWindow() Box2i {
	if attr := h.Get(AttrNameDataWindow); attr != nil {
		if b, ok := attr.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDataWindow sets the header's data window.
func (h *Header) SetDataWindow(b Box2i) {
	h.Set(&Attribute{Name: AttrNameDataWindow, Type: AttrTypeBox2i, Value: b})
}

// DisplayWindow returns the header's display window, or a zero Box2i if unset.
func (h *Header) DisplayWindow() Box2i {
	if attr := h.Get(AttrNameDisplayWindow); attr != nil {
		if b, ok := attr.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDisplayWindow sets the header's display window.
func (h *Header) SetDisplayWindow(b Box2i) {
	h.Set(&Attribute{Name: AttrNameDisplayWindow, Type: AttrTypeBox2i, Value: b})
}

// LineOrder returns the header's scanline order, defaulting to
// LineOrderIncreasing if unset.
func (h *Header) LineOrder() LineOrder {
	if attr := h.Get(AttrNameLineOrder); attr != nil {
		if lo, ok := attr.Value.(LineOrder); ok {
			return lo
		}
	}
	return LineOrderIncreasing
}

// SetLineOrder sets the header's scanline order.
func (h *Header) SetLineOrder(lo LineOrder) {
	h.Set(&Attribute{Name: AttrNameLineOrder, Type: AttrTypeLineOrder, Value: lo})
}

// PixelAspectRatio returns the header's pixel aspect ratio, defaulting to
// 1.0 if unset.
func (h *Header) PixelAspectRatio() float32 {
	if attr := h.Get(AttrNamePixelAspectRatio); attr != nil {
		if v, ok := attr.Value.(float32); ok {
			return v
		}
	}
	return 1.0
}

// SetPixelAspectRatio sets the header's pixel aspect ratio.
func (h *Header) SetPixelAspectRatio(v float32) {
	h.Set(&Attribute{Name: AttrNamePixelAspectRatio, Type: AttrTypeFloat, Value: v})
}

// ScreenWindowCenter returns the header's screen window center, defaulting
// to the origin if unset.
func (h *Header) ScreenWindowCenter() V2f {
	if attr := h.Get(AttrNameScreenWindowCenter); attr != nil {
		if v, ok := attr.Value.(V2f); ok {
			return v
		}
	}
	return V2f{}
}

// SetScreenWindowCenter sets the header's screen window center.
func (h *Header) SetScreenWindowCenter(v V2f) {
	h.Set(&Attribute{Name: AttrNameScreenWindowCenter, Type: AttrTypeV2f, Value: v})
}

// ScreenWindowWidth returns the header's screen window width, defaulting to
// 1.0 if unset.
func (h *Header) ScreenWindowWidth() float32 {
	if attr := h.Get(AttrNameScreenWindowWidth); attr != nil {
		if v, ok := attr.Value.(float32); ok {
			return v
		}
	}
	return 1.0
}

// SetScreenWindowWidth sets the header's screen window width.
func (h *Header) SetScreenWindowWidth(v float32) {
	h.Set(&Attribute{Name: AttrNameScreenWindowWidth, Type: AttrTypeFloat, Value: v})
}

// TileDescription returns the header's tile description, or nil if the
// part is not tiled.
func (h *Header) TileDescription() *TileDescription {
	if attr := h.Get(AttrNameTiles); attr != nil {
		if td, ok := attr.Value.(TileDescription); ok {
			out := td
			return &out
		}
	}
	return nil
}

// SetTileDescription sets the header's tile description, marking the part
// as tiled.
func (h *Header) SetTileDescription(td TileDescription) {
	h.Set(&Attribute{Name: AttrNameTiles, Type: AttrTypeTileDesc, Value: td})
}

// IsTiled reports whether the header carries a tile description.
func (h *Header) IsTiled() bool {
	return h.Has(AttrNameTiles)
}

// Width returns the data window's width in pixels.
func (h *Header) Width() int {
	return int(h.DataWindow().Width())
}

// Height returns the data window's height in pixels.
func (h *Header) Height() int {
	return int(h.DataWindow().Height())
}

// ZIPLevel returns the zlib compression level stored in this header. The
// deep scanline and deep tiled writers use it for ZIP/ZIPS chunks; the
// scanline and tiled writers and the PXR24 codec compress at the default
// level regardless of this setting.
func (h *Header) ZIPLevel() int {
	return int(h.zipLevel)
}

// SetZIPLevel sets the zlib compression level reported by ZIPLevel (see
// ZIPLevel for which writers use it).
func (h *Header) SetZIPLevel(level int) {
	h.zipLevel = compression.CompressionLevel(level)
}

// DetectedFLevel returns the zlib FLEVEL category recorded on this header by
// setDetectedFLevel, and whether one has been recorded. No reader in this
// package records one, so headers read from files report false.
func (h *Header) DetectedFLevel() (compression.FLevel, bool) {
	return h.detectedFLevel, h.hasDetectedFLevel
}

func (h *Header) setDetectedFLevel(fl compression.FLevel) {
	h.detectedFLevel = fl
	h.hasDetectedFLevel = true
}

// CompressionOptions groups the tunable knobs of this header's compressor.
type CompressionOptions struct {
	ZIPLevel compression.CompressionLevel
}

// CompressionOptions returns the header's current compressor settings.
func (h *Header) CompressionOptions() CompressionOptions {
	return CompressionOptions{ZIPLevel: h.zipLevel}
}

// SetCompressionOptions applies opts to the header's compressor settings.
func (h *Header) SetCompressionOptions(opts CompressionOptions) {
	h.zipLevel = opts.ZIPLevel
}

// DWACompressionLevel returns the DWA quantization quality, defaulting to
// DefaultDWACompressionLevel if unset.
func (h *Header) DWACompressionLevel() float64 {
	if attr := h.Get(attrNameDWACompressionLevel); attr != nil {
		if v, ok := attr.Value.(float32); ok {
			return float64(v)
		}
	}
	return DefaultDWACompressionLevel
}

// SetDWACompressionLevel sets the DWA quantization quality.
func (h *Header) SetDWACompressionLevel(level float64) {
	h.Set(&Attribute{Name: attrNameDWACompressionLevel, Type: AttrTypeFloat, Value: float32(level)})
}

// Validate checks that the header carries the minimum attributes needed to
// read or write pixel data: a non-empty channel list and a non-empty data
// window.
func (h *Header) Validate() error {
	cl := h.Channels()
	if cl == nil || cl.Len() == 0 {
		return ErrMissingChannels
	}
	if h.DataWindow().IsEmpty() {
		return ErrEmptyDataWindow
	}
	return nil
}

// numLevels returns how many resolution levels a dimension of the given
// size produces under rounding mode mode, following OpenEXR's halve-until-1
// rule.
func numLevels(size int, mode LevelRoundingMode) int {
	if size <= 0 {
		return 0
	}
	n := 0
	v := 1
	if mode == LevelRoundUp {
		for v < size {
			v <<= 1
			n++
		}
	} else {
		for v*2 <= size {
			v <<= 1
			n++
		}
	}
	return n + 1
}

func levelSizeStep(size int, mode LevelRoundingMode) int {
	if mode == LevelRoundUp {
		return (size + 1) / 2
	}
	return size / 2
}

// NumXLevels returns the number of horizontal resolution levels. Mipmap
// parts use the larger of width/height for both axes; ripmap parts compute
// each axis independently.
func (h *Header) NumXLevels() int {
	td := h.TileDescription()
	if td == nil {
		return 1
	}
	switch td.Mode {
	case LevelModeOne:
		return 1
	case LevelModeMipmap:
		return numLevels(maxInt(h.Width(), h.Height()), td.RoundingMode)
	case LevelModeRipmap:
		return numLevels(h.Width(), td.RoundingMode)
	default:
		return 1
	}
}

// NumYLevels returns the number of vertical resolution levels.
func (h *Header) NumYLevels() int {
	td := h.TileDescription()
	if td == nil {
		return 1
	}
	switch td.Mode {
	case LevelModeOne:
		return 1
	case LevelModeMipmap:
		return numLevels(maxInt(h.Width(), h.Height()), td.RoundingMode)
	case LevelModeRipmap:
		return numLevels(h.Height(), td.RoundingMode)
	default:
		return 1
	}
}

// LevelWidth returns the pixel width of resolution level. Negative levels
// return the full width; levels beyond the last resolution level return 1.
func (h *Header) LevelWidth(level int) int {
	w := h.Width()
	if level <= 0 {
		return w
	}
	td := h.TileDescription()
	if td == nil {
		return w
	}
	size := w
	for i := 0; i < level; i++ {
		size = levelSizeStep(size, td.RoundingMode)
		if size < 1 {
			size = 1
		}
	}
	return size
}

// LevelHeight returns the pixel height of resolution level, with the same
// edge-case behavior as LevelWidth.
func (h *Header) LevelHeight(level int) int {
	ht := h.Height()
	if level <= 0 {
		return ht
	}
	td := h.TileDescription()
	if td == nil {
		return ht
	}
	size := ht
	for i := 0; i < level; i++ {
		size = levelSizeStep(size, td.RoundingMode)
		if size < 1 {
			size = 1
		}
	}
	return size
}

// NumXTiles returns the number of tile columns at the given resolution
// level, or 0 if the header has no tile description.
func (h *Header) NumXTiles(level int) int {
	td := h.TileDescription()
	if td == nil || td.XSize == 0 {
		return 0
	}
	w := h.LevelWidth(level)
	ts := int(td.XSize)
	return (w + ts - 1) / ts
}

// NumYTiles returns the number of tile rows at the given resolution level,
// or 0 if the header has no tile description.
func (h *Header) NumYTiles(level int) int {
	td := h.TileDescription()
	if td == nil || td.YSize == 0 {
		return 0
	}
	ht := h.LevelHeight(level)
	ts := int(td.YSize)
	return (ht + ts - 1) / ts
}

// ChunksInFile returns the total number of chunks (scanline blocks or
// tiles, across all resolution levels) the header's image will produce.
func (h *Header) ChunksInFile() int {
	if !h.IsTiled() {
		spc := h.Compression().ScanlinesPerChunk()
		height := h.Height()
		return (height + spc - 1) / spc
	}

	td := h.TileDescription()
	switch td.Mode {
	case LevelModeMipmap:
		total := 0
		for l := 0; l < h.NumXLevels(); l++ {
			total += h.NumXTiles(l) * h.NumYTiles(l)
		}
		return total
	case LevelModeRipmap:
		total := 0
		for lx := 0; lx < h.NumXLevels(); lx++ {
			for ly := 0; ly < h.NumYLevels(); ly++ {
				total += h.NumXTiles(lx) * h.NumYTiles(ly)
			}
		}
		return total
	default:
		return h.NumXTiles(0) * h.NumYTiles(0)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SerializeForTest serializes the header the same way WriteHeader does,
// for tests that need a byte-exact, deterministic encoding.
func (h *Header) SerializeForTest() []byte {
	w := xdr.NewBufferWriter(1024)
	WriteHeader(w, h)
	return w.Bytes()
}

// WriteHeader writes every attribute in h in alphabetical order, followed
// by the empty-name terminator that marks the end of a header.
func WriteHeader(w *xdr.BufferWriter, h *Header) error {
	for _, name := range h.sortedAttributeNames() {
		if err := WriteAttribute(w, h.attrs[name]); err != nil {
			return err
		}
	}
	w.WriteString("")
	return nil
}

// ReadHeader reads attributes until the empty-name terminator.
func ReadHeader(r *xdr.Reader) (*Header, error) {
	h := NewHeader()
	for {
		attr, err := ReadAttribute(r)
		if err != nil {
			return nil, err
		}
		if attr == nil {
			return h, nil
		}
		h.Set(attr)
	}
}

// ReadHeaderFromBytes deserializes a header from a byte slice previously
// produced by SerializeForTest or WriteHeader.
func ReadHeaderFromBytes(data []byte) (*Header, error) {
	r := xdr.NewReader(data)
	return ReadHeader(r)
}
