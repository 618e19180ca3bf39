// Package compression provides compression algorithms for OpenEXR files.
package compression

// Haar wavelet transform for PIZ compression.
// Based on OpenEXR's ImfWav.cpp implementation.
//
// The transform operates on 16-bit unsigned integers and produces
// wavelet coefficients that are also 16-bit unsigned, using 14-bit signed
// arithmetic for the average/difference pair (wenc14/wdec14).

// wenc14 encodes a pair of values into average and difference.
// Uses 14-bit signed arithmetic for the difference to match OpenEXR.
// Only valid for data where all values are less than 16384.
func wenc14(a, b uint16) (l, h uint16) {
	// Compute average and difference
	as := int(int16(a))
	bs := int(int16(b))

	ms := (as + bs) >> 1
	ds := as - bs

	l = uint16(int16(ms))
	h = uint16(int16(ds))
	return
}

// wdec14 decodes average and difference back to original values.
func wdec14(l, h uint16) (a, b uint16) {
	ms := int(int16(l))
	ds := int(int16(h))

	as := ms + ((ds + 1) >> 1)
	bs := ms - (ds >> 1)

	a = uint16(int16(as))
	b = uint16(int16(bs))
	return
}

// WaveletEncode applies forward Haar wavelet transform in place.
// The data is organized as a 2D array of width x height 16-bit values.
func WaveletEncode(data []uint16, width, height int) {
	if len(data) == 0 || width == 0 || height == 0 {
		return
	}

	temp := make([]uint16, max(width, height))

	// Transform rows
	for y := 0; y < height; y++ {
		row := data[y*width : (y+1)*width]
		wav16Encode(row, temp, width)
	}

	// Transform columns
	col := make([]uint16, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		wav16Encode(col, temp, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
}

// WaveletDecode applies inverse Haar wavelet transform in place.
func WaveletDecode(data []uint16, width, height int) {
	if len(data) == 0 || width == 0 || height == 0 {
		return
	}

	temp := make([]uint16, max(width, height))

	// Inverse transform columns first (reverse of encode)
	col := make([]uint16, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		wav16Decode(col, temp, height)
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}

	// Inverse transform rows
	for y := 0; y < height; y++ {
		row := data[y*width : (y+1)*width]
		wav16Decode(row, temp, width)
	}
}

// wav16Encode applies forward wavelet transform to a 1D array
func wav16Encode(data, temp []uint16, n int) {
	if n < 2 {
		return
	}

	p := n
	pEnd := 1
	for p > pEnd {
		p2 := p >> 1

		// Process pairs
		a := 0
		c := 0
		for c < p2 {
			l, h := wenc14(data[a], data[a+1])
			temp[c] = l
			temp[c+p2] = h
			a += 2
			c++
		}

		// Handle odd length - last element just passes through
		if p&1 != 0 {
			temp[p2+p2] = data[a]
		}

		// Copy back
		copy(data[:p], temp[:p])

		p = p2
	}
}

// wav16Decode applies inverse wavelet transform to a 1D array
func wav16Decode(data, temp []uint16, n int) {
	if n < 2 {
		return
	}

	// Find the sequence of p values (from smallest to largest)
	var pStack []int
	p := n
	for p > 1 {
		pStack = append(pStack, p)
		p = p >> 1
	}

	// Process in reverse order (smallest to largest)
	for i := len(pStack) - 1; i >= 0; i-- {
		p := pStack[i]
		p2 := p >> 1

		// Decode pairs
		a := 0
		c := 0
		for c < p2 {
			la, lb := wdec14(data[c], data[c+p2])
			temp[a] = la
			temp[a+1] = lb
			a += 2
			c++
		}

		// Handle odd length - last element just passes through
		if p&1 != 0 {
			temp[a] = data[p2+p2]
		}

		// Copy back
		copy(data[:p], temp[:p])
	}
}

