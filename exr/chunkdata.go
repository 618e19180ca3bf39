package exr

import (
	"math"

	"github.com/exrlab/goexr/compression"
	"github.com/exrlab/goexr/half"
	"github.com/exrlab/goexr/internal/predictor"
)

// decompressChunkData reverses compressChunkData, expanding a chunk's raw
// payload back to its uncompressed, interleaved-by-channel byte layout.
func decompressChunkData(data []byte, width, height int, cl *ChannelList, comp Compression) ([]byte, error) {
	bytesPerPixel := 0
	for i := 0; i < cl.Len(); i++ {
		bytesPerPixel += cl.At(i).Type.Size()
	}
	expectedSize := width * height * bytesPerPixel

	switch comp {
	case CompressionNone:
		return data, nil

	case CompressionRLE:
		decoded, err := compression.RLEDecompress(data, expectedSize)
		if err != nil {
			return nil, err
		}
		predictor.DecodeSIMD(decoded)
		return decoded, nil

	case CompressionZIPS, CompressionZIP:
		inflated, err := compression.ZIPDecompress(data, expectedSize)
		if err != nil {
			return nil, err
		}
		decoded := compression.Deinterleave(inflated)
		predictor.DecodeSIMD(decoded)
		return decoded, nil

	case CompressionPIZ:
		return compression.PIZDecompressBytes(data, width, height, cl.Len())

	case CompressionPXR24:
		sortedChannels := cl.SortedByName()
		channels := make([]compression.ChannelInfo, len(sortedChannels))
		for i, ch := range sortedChannels {
			chWidth := (width + int(ch.XSampling) - 1) / int(ch.XSampling)
			channels[i] = compression.ChannelInfo{
				Type:   pixelTypeToCompressionCode(ch.Type),
				Width:  chWidth,
				Height: height,
			}
		}
		return compression.PXR24Decompress(data, channels, width, height, expectedSize)

	case CompressionB44, CompressionB44A:
		sortedChannels := cl.SortedByName()
		channels := make([]compression.B44ChannelInfo, len(sortedChannels))
		for i, ch := range sortedChannels {
			chWidth := (width + int(ch.XSampling) - 1) / int(ch.XSampling)
			channels[i] = compression.B44ChannelInfo{
				Type:      pixelTypeToCompressionCode(ch.Type),
				Width:     chWidth,
				Height:    height,
				IsLinear:  ch.PLinear,
				XSampling: int(ch.XSampling),
				YSampling: int(ch.YSampling),
			}
		}
		return compression.B44Decompress(data, channels, width, height, expectedSize)

	case CompressionDWAA:
		dst := make([]byte, expectedSize)
		if err := compression.DecompressDWAA(data, dst, width, height); err != nil {
			return nil, err
		}
		return dst, nil

	case CompressionDWAB:
		dst := make([]byte, expectedSize)
		if err := compression.DecompressDWAB(data, dst, width, height); err != nil {
			return nil, err
		}
		return dst, nil

	default:
		return data, nil
	}
}

func pixelTypeToCompressionCode(t PixelType) int {
	switch t {
	case PixelTypeUint:
		return 0
	case PixelTypeHalf:
		return 1
	case PixelTypeFloat:
		return 2
	}
	return 1
}

// parseScanlineData is the inverse of buildScanlineData: it scatters a
// chunk's uncompressed bytes into the matching channel slices of fb,
// starting at absolute scanline startY.
func parseScanlineData(fb *FrameBuffer, cl *ChannelList, data []byte, width, startY, numLines int) {
	sortedChannels := cl.SortedByName()

	offset := 0
	for y := startY; y < startY+numLines; y++ {
		for _, ch := range sortedChannels {
			slice := fb.Get(ch.Name)
			for x := 0; x < width; x++ {
				if slice == nil {
					switch ch.Type {
					case PixelTypeHalf:
						offset += 2
					case PixelTypeFloat, PixelTypeUint:
						offset += 4
					}
					continue
				}

				switch ch.Type {
				case PixelTypeHalf:
					bits := uint16(data[offset]) | uint16(data[offset+1])<<8
					slice.SetHalf(x, y, half.FromBits(bits))
					offset += 2
				case PixelTypeFloat:
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					slice.SetFloat32(x, y, math.Float32frombits(bits))
					offset += 4
				case PixelTypeUint:
					v := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					slice.SetUint32(x, y, v)
					offset += 4
				}
			}
		}
	}
}

// parseTileData is the inverse of buildTileData: it scatters a tile's
// uncompressed bytes into the matching channel slices of fb, starting at
// absolute coordinates (startX, startY).
func parseTileData(fb *FrameBuffer, cl *ChannelList, data []byte, startX, startY, width, height int) {
	sortedChannels := cl.SortedByName()

	offset := 0
	for y := 0; y < height; y++ {
		for _, ch := range sortedChannels {
			slice := fb.Get(ch.Name)
			for x := 0; x < width; x++ {
				if slice == nil {
					switch ch.Type {
					case PixelTypeHalf:
						offset += 2
					case PixelTypeFloat, PixelTypeUint:
						offset += 4
					}
					continue
				}

				switch ch.Type {
				case PixelTypeHalf:
					bits := uint16(data[offset]) | uint16(data[offset+1])<<8
					slice.SetHalf(startX+x, startY+y, half.FromBits(bits))
					offset += 2
				case PixelTypeFloat:
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					slice.SetFloat32(startX+x, startY+y, math.Float32frombits(bits))
					offset += 4
				case PixelTypeUint:
					v := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					slice.SetUint32(startX+x, startY+y, v)
					offset += 4
				}
			}
		}
	}
}
