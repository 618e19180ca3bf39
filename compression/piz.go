package compression

import (
	"encoding/binary"
	"errors"
)

// ErrPIZCorrupt is returned when a PIZ-compressed block is truncated or
// its embedded symbol table doesn't agree with its own size fields.
var ErrPIZCorrupt = errors.New("compression: corrupt piz block")

// PIZCompress applies the Haar wavelet transform to each channel plane of
// data (channel-planar: data[ch*width*height+i]) and Huffman-codes the
// result. Channels are transformed independently but share one Huffman
// table, since wavelet coefficients across channels tend to follow a
// similar distribution.
func PIZCompress(data []uint16, width, height, numChannels int) ([]byte, error) {
	if len(data) == 0 || width == 0 || height == 0 || numChannels == 0 {
		return nil, nil
	}

	planeSize := width * height
	transformed := make([]uint16, len(data))
	copy(transformed, data)
	for ch := 0; ch < numChannels; ch++ {
		plane := transformed[ch*planeSize : (ch+1)*planeSize]
		WaveletEncode(plane, width, height)
	}

	freqs := make([]uint64, 1<<16)
	for _, v := range transformed {
		freqs[v]++
	}
	enc := NewHuffmanEncoder(freqs)
	lengths := enc.GetLengths()

	type symLen struct {
		sym    uint16
		length uint8
	}
	var used []symLen
	for s, l := range lengths {
		if l > 0 {
			used = append(used, symLen{sym: uint16(s), length: uint8(l)})
		}
	}

	bitstream := enc.Encode(transformed)

	out := make([]byte, 0, 20+len(used)*3+len(bitstream))
	var hdr [4]byte
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(hdr[:], v)
		out = append(out, hdr[:]...)
	}
	putU32(uint32(width))
	putU32(uint32(height))
	putU32(uint32(numChannels))
	putU32(uint32(len(used)))
	for _, sl := range used {
		var b [3]byte
		binary.BigEndian.PutUint16(b[:2], sl.sym)
		b[2] = sl.length
		out = append(out, b[:]...)
	}
	out = append(out, bitstream...)
	return out, nil
}

// PIZDecompress is the inverse of PIZCompress, returning the original
// channel-planar uint16 data.
func PIZDecompress(compressed []byte, width, height, numChannels int) ([]uint16, error) {
	if len(compressed) == 0 || width == 0 || height == 0 || numChannels == 0 {
		return nil, nil
	}

	out, err := pizDecodeValues(compressed, width, height, numChannels)
	if err != nil {
		return nil, err
	}

	planeSize := width * height
	for ch := 0; ch < numChannels; ch++ {
		plane := out[ch*planeSize : (ch+1)*planeSize]
		WaveletDecode(plane, width, height)
	}
	return out, nil
}

// PIZDecompressBytes is PIZDecompress with the result packed little-endian
// into bytes, for callers that work with raw pixel buffers instead of a
// typed uint16 slice (deep-pixel chunks, for instance).
func PIZDecompressBytes(data []byte, width, height, numChannels int) ([]byte, error) {
	values, err := PIZDecompress(data, width, height, numChannels)
	if err != nil || values == nil {
		return nil, err
	}
	out := make([]byte, len(values)*2)
	for i, v := range values {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out, nil
}

func pizDecodeValues(compressed []byte, width, height, numChannels int) ([]uint16, error) {
	if len(compressed) < 16 {
		return nil, ErrPIZCorrupt
	}
	gotWidth := binary.BigEndian.Uint32(compressed[0:4])
	gotHeight := binary.BigEndian.Uint32(compressed[4:8])
	gotChannels := binary.BigEndian.Uint32(compressed[8:12])
	numUsed := binary.BigEndian.Uint32(compressed[12:16])
	if int(gotWidth) != width || int(gotHeight) != height || int(gotChannels) != numChannels {
		return nil, ErrPIZCorrupt
	}

	pos := 16
	lengths := make([]int, 1<<16)
	for i := uint32(0); i < numUsed; i++ {
		if pos+3 > len(compressed) {
			return nil, ErrPIZCorrupt
		}
		sym := binary.BigEndian.Uint16(compressed[pos : pos+2])
		length := compressed[pos+2]
		lengths[sym] = int(length)
		pos += 3
	}

	dec := NewHuffmanDecoder(lengths)
	total := width * height * numChannels
	values, err := dec.Decode(compressed[pos:], total)
	if err != nil {
		return nil, err
	}
	return values, nil
}
