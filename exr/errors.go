package exr

import "errors"

// Header validation and file-structure errors.
var (
	ErrInvalidHeader   = errors.New("exr: invalid header")
	ErrMissingChannels = errors.New("exr: header has no channels")
	ErrEmptyDataWindow = errors.New("exr: data window is empty")
	ErrNotTiled        = errors.New("exr: header does not describe a tiled part")
	ErrNoFrameBuffer   = errors.New("exr: no frame buffer set")
	ErrInvalidFile     = errors.New("exr: not a valid OpenEXR file")
)

// ErrScanlineOutOfRange is returned when a requested scanline range falls
// outside a part's data window.
var ErrScanlineOutOfRange = errors.New("exr: scanline out of range")

// ErrTileOutOfRange is returned when a requested tile coordinate falls
// outside a part's tile grid.
var ErrTileOutOfRange = errors.New("exr: tile coordinates out of range")

// ErrLevelOutOfRange is returned when a requested resolution level falls
// outside a part's mipmap or ripmap level range.
var ErrLevelOutOfRange = errors.New("exr: level coordinates out of range")

// ErrMissingBlock is returned when a chunk's offset table entry points past
// the end of the available data, or a chunk's on-disk header does not
// describe the scanline/tile/level the caller asked for. Both signal that
// the requested block was never written, or the file was truncated before
// it could be.
var ErrMissingBlock = errors.New("exr: missing or truncated block")

// ErrUnsupportedVersion is returned when a file's version field declares a
// format version or feature flag combination this package does not
// implement.
var ErrUnsupportedVersion = errors.New("exr: unsupported version")

// Standard required-attribute names, as defined by the OpenEXR file format.
const (
	AttrNameChannels           = "channels"
	AttrNameCompression        = "compression"
	AttrNameDataWindow         = "dataWindow"
	AttrNameDisplayWindow      = "displayWindow"
	AttrNameLineOrder          = "lineOrder"
	AttrNamePixelAspectRatio   = "pixelAspectRatio"
	AttrNameScreenWindowCenter = "screenWindowCenter"
	AttrNameScreenWindowWidth  = "screenWindowWidth"
	AttrNameTiles              = "tiles"
	AttrNameName               = "name"
	AttrNameType                = "type"
	AttrNameVersion            = "version"
	AttrNameChunkCount         = "chunkCount"
)

// Part type tags, written to the "type" attribute of a multi-part file's
// header to identify what kind of chunks a part contains.
const (
	PartTypeScanline     = "scanlineimage"
	PartTypeTiled        = "tiledimage"
	PartTypeDeepScanline = "deepscanline"
	PartTypeDeepTiled    = "deeptile"
)
