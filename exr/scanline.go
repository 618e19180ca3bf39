package exr

import "io"

// ScanlineWriter writes scanline-based (non-tiled, non-deep) pixel data to
// an OpenEXR stream.
type ScanlineWriter struct {
	writer      *Writer
	header      *Header
	frameBuffer *FrameBuffer
	currentY    int
}

// NewScanlineWriter writes h and returns a ScanlineWriter for it. Returns
// ErrNotTiled's counterpart ErrInvalidPartType if h describes a tiled part.
func NewScanlineWriter(w io.WriteSeeker, h *Header) (*ScanlineWriter, error) {
	if h.IsTiled() {
		return nil, ErrInvalidPartType
	}
	writer, err := NewMultiPartWriter(w, []*Header{h})
	if err != nil {
		return nil, err
	}
	dw := h.DataWindow()
	return &ScanlineWriter{
		writer:   writer,
		header:   h,
		currentY: int(dw.Min.Y),
	}, nil
}

// Header returns the header this writer was created with.
func (sw *ScanlineWriter) Header() *Header {
	return sw.header
}

// SetFrameBuffer sets the channel data source for subsequent WritePixels
// calls.
func (sw *ScanlineWriter) SetFrameBuffer(fb *FrameBuffer) {
	sw.frameBuffer = fb
}

// WritePixels compresses and writes the scanlines from y1 to y2 inclusive,
// reading pixel values from the frame buffer at absolute data-window
// coordinates.
func (sw *ScanlineWriter) WritePixels(y1, y2 int) error {
	if sw.frameBuffer == nil {
		return ErrNoFrameBuffer
	}
	dw := sw.header.DataWindow()
	if y1 < int(dw.Min.Y) || y2 > int(dw.Max.Y) || y1 > y2 {
		return ErrScanlineOutOfRange
	}

	width := int(dw.Width())
	comp := sw.header.Compression()
	linesPerChunk := comp.ScanlinesPerChunk()
	cl := sw.header.Channels()
	if cl == nil {
		return ErrMissingChannels
	}

	numScanlines := y2 - y1 + 1
	for i := 0; i < numScanlines; {
		chunkY := y1 + i
		linesInChunk := linesPerChunk
		remaining := numScanlines - i
		if linesInChunk > remaining {
			linesInChunk = remaining
		}
		if chunkY+linesInChunk-1 > int(dw.Max.Y) {
			linesInChunk = int(dw.Max.Y) - chunkY + 1
		}
		if linesInChunk <= 0 {
			break
		}

		uncompressed := buildScanlineData(sw.frameBuffer, cl, width, chunkY, linesInChunk)
		compressed, err := compressChunkData(uncompressed, width, linesInChunk, cl, comp)
		if err != nil {
			return err
		}
		if err := sw.writer.WriteChunkPart(0, int32(chunkY), compressed); err != nil {
			return err
		}
		i += linesInChunk
	}
	return nil
}

// Close finalizes the stream, filling in the chunk offset table.
func (sw *ScanlineWriter) Close() error {
	return sw.writer.Close()
}

// ScanlineReader reads scanline-based (non-tiled, non-deep) pixel data from
// an opened OpenEXR file.
type ScanlineReader struct {
	file        *File
	part        int
	header      *Header
	frameBuffer *FrameBuffer
}

// NewScanlineReader returns a ScanlineReader for part 0 of f.
func NewScanlineReader(f *File) (*ScanlineReader, error) {
	return NewScanlineReaderPart(f, 0)
}

// NewScanlineReaderPart returns a ScanlineReader for the given part of f.
func NewScanlineReaderPart(f *File, part int) (*ScanlineReader, error) {
	if f == nil {
		return nil, ErrInvalidFile
	}
	h := f.Header(part)
	if h == nil {
		return nil, ErrPartNotFound
	}
	if h.IsTiled() {
		return nil, ErrInvalidPartType
	}
	return &ScanlineReader{file: f, part: part, header: h}, nil
}

// Header returns the part's header.
func (sr *ScanlineReader) Header() *Header {
	return sr.header
}

// DataWindow returns the part's data window.
func (sr *ScanlineReader) DataWindow() Box2i {
	return sr.header.DataWindow()
}

// SetFrameBuffer sets the channel data destination for subsequent
// ReadPixels calls.
func (sr *ScanlineReader) SetFrameBuffer(fb *FrameBuffer) {
	sr.frameBuffer = fb
}

// ReadPixels decompresses and scatters the scanlines from y1 to y2
// inclusive into the frame buffer at absolute data-window coordinates.
func (sr *ScanlineReader) ReadPixels(y1, y2 int) error {
	if sr.frameBuffer == nil {
		return ErrNoFrameBuffer
	}
	dw := sr.header.DataWindow()
	if y1 < int(dw.Min.Y) || y2 > int(dw.Max.Y) || y1 > y2 {
		return ErrScanlineOutOfRange
	}

	width := int(dw.Width())
	comp := sr.header.Compression()
	linesPerChunk := comp.ScanlinesPerChunk()
	cl := sr.header.Channels()
	if cl == nil {
		return ErrMissingChannels
	}

	firstChunk := (y1 - int(dw.Min.Y)) / linesPerChunk
	lastChunk := (y2 - int(dw.Min.Y)) / linesPerChunk

	for chunkIdx := firstChunk; chunkIdx <= lastChunk; chunkIdx++ {
		chunkY, compressed, err := sr.file.readScanlineChunk(sr.part, chunkIdx)
		if err != nil {
			return err
		}
		expectedY := int(dw.Min.Y) + chunkIdx*linesPerChunk
		if int(chunkY) != expectedY {
			return ErrMissingBlock
		}
		linesInChunk := linesPerChunk
		if int(chunkY)+linesInChunk-1 > int(dw.Max.Y) {
			linesInChunk = int(dw.Max.Y) - int(chunkY) + 1
		}

		uncompressed, err := decompressChunkData(compressed, width, linesInChunk, cl, comp)
		if err != nil {
			return err
		}
		parseScanlineData(sr.frameBuffer, cl, uncompressed, width, int(chunkY), linesInChunk)
	}
	return nil
}
