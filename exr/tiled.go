package exr

import "io"

// TiledWriter writes tiled (non-deep) pixel data to an OpenEXR stream.
type TiledWriter struct {
	writer      *Writer
	header      *Header
	frameBuffer *FrameBuffer
}

// NewTiledWriter writes h and returns a TiledWriter for it. Returns
// ErrNotTiled if h does not describe a tiled part.
func NewTiledWriter(w io.WriteSeeker, h *Header) (*TiledWriter, error) {
	if !h.IsTiled() {
		return nil, ErrNotTiled
	}
	writer, err := NewMultiPartWriter(w, []*Header{h})
	if err != nil {
		return nil, err
	}
	return &TiledWriter{writer: writer, header: h}, nil
}

// Header returns the header this writer was created with.
func (tw *TiledWriter) Header() *Header {
	return tw.header
}

// NumTilesX returns the number of tile columns at level 0.
func (tw *TiledWriter) NumTilesX() int {
	return tw.header.NumXTiles(0)
}

// NumTilesY returns the number of tile rows at level 0.
func (tw *TiledWriter) NumTilesY() int {
	return tw.header.NumYTiles(0)
}

// NumXTilesAtLevel returns the number of tile columns at the given level.
func (tw *TiledWriter) NumXTilesAtLevel(level int) int {
	return tw.header.NumXTiles(level)
}

// NumYTilesAtLevel returns the number of tile rows at the given level.
func (tw *TiledWriter) NumYTilesAtLevel(level int) int {
	return tw.header.NumYTiles(level)
}

// NumXLevels returns the number of horizontal resolution levels.
func (tw *TiledWriter) NumXLevels() int {
	return tw.header.NumXLevels()
}

// NumYLevels returns the number of vertical resolution levels.
func (tw *TiledWriter) NumYLevels() int {
	return tw.header.NumYLevels()
}

// NumLevels returns the number of resolution levels for single-axis level
// modes (one level, or mipmap where X and Y levels match).
func (tw *TiledWriter) NumLevels() int {
	return tw.header.NumXLevels()
}

// LevelMode returns the tile description's level mode.
func (tw *TiledWriter) LevelMode() LevelMode {
	td := tw.header.TileDescription()
	if td == nil {
		return LevelModeOne
	}
	return td.Mode
}

// LevelWidth returns the pixel width of the image at the given horizontal
// resolution level.
func (tw *TiledWriter) LevelWidth(level int) int {
	return tw.header.LevelWidth(level)
}

// LevelHeight returns the pixel height of the image at the given vertical
// resolution level.
func (tw *TiledWriter) LevelHeight(level int) int {
	return tw.header.LevelHeight(level)
}

// SetFrameBuffer sets the channel data source for subsequent tile writes.
func (tw *TiledWriter) SetFrameBuffer(fb *FrameBuffer) {
	tw.frameBuffer = fb
}

func (tw *TiledWriter) checkLevel(levelX, levelY int) error {
	if levelX < 0 || levelX >= tw.header.NumXLevels() || levelY < 0 || levelY >= tw.header.NumYLevels() {
		return ErrLevelOutOfRange
	}
	return nil
}

func (tw *TiledWriter) checkTile(tileX, tileY, levelX, levelY int) error {
	if tileX < 0 || tileX >= tw.header.NumXTiles(levelX) || tileY < 0 || tileY >= tw.header.NumYTiles(levelY) {
		return ErrTileOutOfRange
	}
	return nil
}

// WriteTile writes the tile at (tileX, tileY) in the full-resolution level.
func (tw *TiledWriter) WriteTile(tileX, tileY int) error {
	return tw.WriteTileLevel(tileX, tileY, 0, 0)
}

// WriteTileLevel writes the tile at (tileX, tileY) in resolution level
// (levelX, levelY), reading pixel values from the frame buffer at absolute
// data-window coordinates.
func (tw *TiledWriter) WriteTileLevel(tileX, tileY, levelX, levelY int) error {
	if tw.frameBuffer == nil {
		return ErrNoFrameBuffer
	}
	if err := tw.checkLevel(levelX, levelY); err != nil {
		return err
	}
	if err := tw.checkTile(tileX, tileY, levelX, levelY); err != nil {
		return err
	}

	h := tw.header
	td := h.TileDescription()
	if td == nil {
		return ErrInvalidHeader
	}
	cl := h.Channels()
	if cl == nil {
		return ErrMissingChannels
	}

	dw := h.DataWindow()
	tileW := int(td.XSize)
	tileH := int(td.YSize)
	levelW := h.LevelWidth(levelX)
	levelH := h.LevelHeight(levelY)

	startX := tileX * tileW
	startY := tileY * tileH
	endX := startX + tileW
	endY := startY + tileH
	if endX > levelW {
		endX = levelW
	}
	if endY > levelH {
		endY = levelH
	}
	actualW := endX - startX
	actualH := endY - startY

	absStartX := int(dw.Min.X) + startX
	absStartY := int(dw.Min.Y) + startY

	comp := h.Compression()
	uncompressed := buildTileData(tw.frameBuffer, cl, absStartX, absStartY, actualW, actualH)
	compressed, err := compressChunkData(uncompressed, actualW, actualH, cl, comp)
	if err != nil {
		return err
	}
	return tw.writer.WriteTileChunkPart(0, tileX, tileY, levelX, levelY, compressed)
}

// WriteTiles writes every tile in the inclusive range
// [tileX1,tileX2]x[tileY1,tileY2] at the full-resolution level.
func (tw *TiledWriter) WriteTiles(tileX1, tileY1, tileX2, tileY2 int) error {
	return tw.WriteTilesLevel(tileX1, tileY1, tileX2, tileY2, 0, 0)
}

// WriteTilesLevel writes every tile in the inclusive range
// [tileX1,tileX2]x[tileY1,tileY2] at resolution level (levelX, levelY).
func (tw *TiledWriter) WriteTilesLevel(tileX1, tileY1, tileX2, tileY2, levelX, levelY int) error {
	if tileX1 > tileX2 || tileY1 > tileY2 {
		return ErrTileOutOfRange
	}
	for ty := tileY1; ty <= tileY2; ty++ {
		for tx := tileX1; tx <= tileX2; tx++ {
			if err := tw.WriteTileLevel(tx, ty, levelX, levelY); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close finalizes the stream, filling in the chunk offset table.
func (tw *TiledWriter) Close() error {
	return tw.writer.Close()
}

// TiledReader reads tiled (non-deep) pixel data from an opened OpenEXR
// file.
type TiledReader struct {
	file        *File
	part        int
	header      *Header
	frameBuffer *FrameBuffer
}

// NewTiledReader returns a TiledReader for part 0 of f.
func NewTiledReader(f *File) (*TiledReader, error) {
	return NewTiledReaderPart(f, 0)
}

// NewTiledReaderPart returns a TiledReader for the given part of f.
func NewTiledReaderPart(f *File, part int) (*TiledReader, error) {
	if f == nil {
		return nil, ErrInvalidFile
	}
	h := f.Header(part)
	if h == nil {
		return nil, ErrPartNotFound
	}
	if !h.IsTiled() {
		return nil, ErrNotTiled
	}
	return &TiledReader{file: f, part: part, header: h}, nil
}

// Header returns the part's header.
func (tr *TiledReader) Header() *Header {
	return tr.header
}

// DataWindow returns the part's data window.
func (tr *TiledReader) DataWindow() Box2i {
	return tr.header.DataWindow()
}

// NumTilesX returns the number of tile columns at level 0.
func (tr *TiledReader) NumTilesX() int {
	return tr.header.NumXTiles(0)
}

// NumTilesY returns the number of tile rows at level 0.
func (tr *TiledReader) NumTilesY() int {
	return tr.header.NumYTiles(0)
}

// NumXTilesAtLevel returns the number of tile columns at the given level.
func (tr *TiledReader) NumXTilesAtLevel(level int) int {
	return tr.header.NumXTiles(level)
}

// NumYTilesAtLevel returns the number of tile rows at the given level.
func (tr *TiledReader) NumYTilesAtLevel(level int) int {
	return tr.header.NumYTiles(level)
}

// NumXLevels returns the number of horizontal resolution levels.
func (tr *TiledReader) NumXLevels() int {
	return tr.header.NumXLevels()
}

// NumYLevels returns the number of vertical resolution levels.
func (tr *TiledReader) NumYLevels() int {
	return tr.header.NumYLevels()
}

// NumLevels returns the number of resolution levels for single-axis level
// modes (one level, or mipmap where X and Y levels match).
func (tr *TiledReader) NumLevels() int {
	return tr.header.NumXLevels()
}

// LevelMode returns the tile description's level mode.
func (tr *TiledReader) LevelMode() LevelMode {
	td := tr.header.TileDescription()
	if td == nil {
		return LevelModeOne
	}
	return td.Mode
}

// LevelWidth returns the pixel width of the image at the given horizontal
// resolution level.
func (tr *TiledReader) LevelWidth(level int) int {
	return tr.header.LevelWidth(level)
}

// LevelHeight returns the pixel height of the image at the given vertical
// resolution level.
func (tr *TiledReader) LevelHeight(level int) int {
	return tr.header.LevelHeight(level)
}

// SetFrameBuffer sets the channel data destination for subsequent tile
// reads.
func (tr *TiledReader) SetFrameBuffer(fb *FrameBuffer) {
	tr.frameBuffer = fb
}

func (tr *TiledReader) checkLevel(levelX, levelY int) error {
	if levelX < 0 || levelX >= tr.header.NumXLevels() || levelY < 0 || levelY >= tr.header.NumYLevels() {
		return ErrLevelOutOfRange
	}
	return nil
}

func (tr *TiledReader) checkTile(tileX, tileY, levelX, levelY int) error {
	if tileX < 0 || tileX >= tr.header.NumXTiles(levelX) || tileY < 0 || tileY >= tr.header.NumYTiles(levelY) {
		return ErrTileOutOfRange
	}
	return nil
}

// ReadTile reads the tile at (tileX, tileY) in the full-resolution level.
func (tr *TiledReader) ReadTile(tileX, tileY int) error {
	return tr.ReadTileLevel(tileX, tileY, 0, 0)
}

// ReadTileLevel reads the tile at (tileX, tileY) in resolution level
// (levelX, levelY), scattering pixel values into the frame buffer at
// absolute data-window coordinates.
func (tr *TiledReader) ReadTileLevel(tileX, tileY, levelX, levelY int) error {
	if tr.frameBuffer == nil {
		return ErrNoFrameBuffer
	}
	if err := tr.checkLevel(levelX, levelY); err != nil {
		return err
	}
	if err := tr.checkTile(tileX, tileY, levelX, levelY); err != nil {
		return err
	}

	h := tr.header
	td := h.TileDescription()
	if td == nil {
		return ErrInvalidHeader
	}
	cl := h.Channels()
	if cl == nil {
		return ErrMissingChannels
	}

	chunkIdx := tileChunkIndex(h, tileX, tileY, levelX, levelY)
	coord, compressed, err := tr.file.readTileChunk(tr.part, chunkIdx)
	if err != nil {
		return err
	}
	if coord.TileX != int32(tileX) || coord.TileY != int32(tileY) ||
		coord.LevelX != int32(levelX) || coord.LevelY != int32(levelY) {
		return ErrMissingBlock
	}

	dw := h.DataWindow()
	tileW := int(td.XSize)
	tileH := int(td.YSize)
	levelW := h.LevelWidth(levelX)
	levelH := h.LevelHeight(levelY)

	startX := tileX * tileW
	startY := tileY * tileH
	endX := startX + tileW
	endY := startY + tileH
	if endX > levelW {
		endX = levelW
	}
	if endY > levelH {
		endY = levelH
	}
	actualW := endX - startX
	actualH := endY - startY

	absStartX := int(dw.Min.X) + startX
	absStartY := int(dw.Min.Y) + startY

	comp := h.Compression()
	uncompressed, err := decompressChunkData(compressed, actualW, actualH, cl, comp)
	if err != nil {
		return err
	}
	parseTileData(tr.frameBuffer, cl, uncompressed, absStartX, absStartY, actualW, actualH)
	return nil
}

// ReadTiles reads every tile in the inclusive range
// [tileX1,tileX2]x[tileY1,tileY2] at the full-resolution level.
func (tr *TiledReader) ReadTiles(tileX1, tileY1, tileX2, tileY2 int) error {
	return tr.ReadTilesLevel(tileX1, tileY1, tileX2, tileY2, 0, 0)
}

// ReadTilesLevel reads every tile in the inclusive range
// [tileX1,tileX2]x[tileY1,tileY2] at resolution level (levelX, levelY).
func (tr *TiledReader) ReadTilesLevel(tileX1, tileY1, tileX2, tileY2, levelX, levelY int) error {
	if tileX1 > tileX2 || tileY1 > tileY2 {
		return ErrTileOutOfRange
	}
	for ty := tileY1; ty <= tileY2; ty++ {
		for tx := tileX1; tx <= tileX2; tx++ {
			if err := tr.ReadTileLevel(tx, ty, levelX, levelY); err != nil {
				return err
			}
		}
	}
	return nil
}
