package exr

import (
	"errors"
	"sort"
	"strings"

	"github.com/exrlab/goexr/internal/xdr"
)

// ErrInvalidChannelList is returned when a channel list's wire encoding is
// truncated or malformed.
var ErrInvalidChannelList = errors.New("exr: invalid channel list")

// PixelType identifies the storage type of a channel's samples.
type PixelType int

const (
	PixelTypeUint PixelType = iota
	PixelTypeHalf
	PixelTypeFloat
)

func (p PixelType) String() string {
	switch p {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Size returns the on-disk size in bytes of one sample of this type.
func (p PixelType) Size() int {
	switch p {
	case PixelTypeUint, PixelTypeFloat:
		return 4
	case PixelTypeHalf:
		return 2
	default:
		return 0
	}
}

// Channel describes one named image channel: its storage type, whether it
// was linearized before subsampling (relevant to chroma channels), and its
// subsampling factors relative to the data window.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int
	YSampling int
}

// NewChannel returns a full-resolution (1x1 sampled) channel of the given
// name and type.
func NewChannel(name string, pixelType PixelType) Channel {
	return Channel{Name: name, Type: pixelType, XSampling: 1, YSampling: 1}
}

// Layer returns the dot-separated layer prefix of the channel name, or ""
// for a channel at the root layer. "diffuse.R" has layer "diffuse".
func (c Channel) Layer() string {
	i := strings.LastIndex(c.Name, ".")
	if i < 0 {
		return ""
	}
	return c.Name[:i]
}

// BaseName returns the channel name with its layer prefix stripped.
func (c Channel) BaseName() string {
	i := strings.LastIndex(c.Name, ".")
	if i < 0 {
		return c.Name
	}
	return c.Name[i+1:]
}

// ChannelList is an unordered collection of uniquely-named channels. Most
// operations preserve insertion order; SortByName and SortForCompression
// reorder the list in place.
type ChannelList struct {
	channels []Channel
}

// NewChannelList returns an empty channel list.
func NewChannelList() *ChannelList {
	return &ChannelList{}
}

// Len returns the number of channels.
func (cl *ChannelList) Len() int { return len(cl.channels) }

// Add inserts c, returning false without modifying the list if a channel
// with the same name already exists.
func (cl *ChannelList) Add(c Channel) bool {
	if cl.Get(c.Name) != nil {
		return false
	}
	cl.channels = append(cl.channels, c)
	return true
}

// Get returns a pointer to the channel named name, or nil if absent. The
// pointer aliases the list's internal storage.
func (cl *ChannelList) Get(name string) *Channel {
	for i := range cl.channels {
		if cl.channels[i].Name == name {
			return &cl.channels[i]
		}
	}
	return nil
}

// At returns the channel at index i.
func (cl *ChannelList) At(i int) Channel {
	return cl.channels[i]
}

// Names returns the channel names in list order.
func (cl *ChannelList) Names() []string {
	names := make([]string, len(cl.channels))
	for i, c := range cl.channels {
		names[i] = c.Name
	}
	return names
}

// Channels returns a copy of the underlying channel slice in list order.
func (cl *ChannelList) Channels() []Channel {
	out := make([]Channel, len(cl.channels))
	copy(out, cl.channels)
	return out
}

// SortedByName returns a copy of the channels sorted alphabetically by
// name, leaving the list itself untouched.
func (cl *ChannelList) SortedByName() []Channel {
	out := cl.Channels()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasRGB reports whether the list contains R, G, and B channels.
func (cl *ChannelList) HasRGB() bool {
	return cl.Get("R") != nil && cl.Get("G") != nil && cl.Get("B") != nil
}

// HasAlpha reports whether the list contains an A channel.
func (cl *ChannelList) HasAlpha() bool {
	return cl.Get("A") != nil
}

// HasRGBA reports whether the list contains R, G, B, and A channels.
func (cl *ChannelList) HasRGBA() bool {
	return cl.HasRGB() && cl.HasAlpha()
}

// Layers returns the distinct non-root layer names present in the list, in
// first-seen order.
func (cl *ChannelList) Layers() []string {
	seen := make(map[string]bool)
	var layers []string
	for _, c := range cl.channels {
		l := c.Layer()
		if l == "" {
			continue
		}
		if !seen[l] {
			seen[l] = true
			layers = append(layers, l)
		}
	}
	return layers
}

// ChannelsInLayer returns the channels whose Layer() equals layer ("" for
// the root layer), in list order.
func (cl *ChannelList) ChannelsInLayer(layer string) []Channel {
	var out []Channel
	for _, c := range cl.channels {
		if c.Layer() == layer {
			out = append(out, c)
		}
	}
	return out
}

// SortByName reorders the list alphabetically by channel name.
func (cl *ChannelList) SortByName() {
	sort.Slice(cl.channels, func(i, j int) bool {
		return cl.channels[i].Name < cl.channels[j].Name
	})
}

// SortForCompression reorders the list by pixel type and then by name, the
// order most compressors expect so that same-typed channel planes sit next
// to each other.
func (cl *ChannelList) SortForCompression() {
	sort.Slice(cl.channels, func(i, j int) bool {
		if cl.channels[i].Type != cl.channels[j].Type {
			return cl.channels[i].Type < cl.channels[j].Type
		}
		return cl.channels[i].Name < cl.channels[j].Name
	})
}

// BytesPerPixel returns the sum of each channel's sample size, ignoring
// subsampling. Used for full-resolution interleaved buffers.
func (cl *ChannelList) BytesPerPixel() int {
	total := 0
	for _, c := range cl.channels {
		total += c.Type.Size()
	}
	return total
}

// BytesPerScanline returns the number of bytes one scanline of width pixels
// occupies across all channels, accounting for each channel's horizontal
// subsampling.
func (cl *ChannelList) BytesPerScanline(width int) int {
	total := 0
	for _, c := range cl.channels {
		w := width
		if c.XSampling > 1 {
			w = (width + c.XSampling - 1) / c.XSampling
		}
		total += w * c.Type.Size()
	}
	return total
}

// WriteChannelList serializes cl in OpenEXR's channel-list wire format: one
// record per channel (name, type, pLinear, 3 reserved bytes, xSampling,
// ySampling), terminated by an empty name. Channels are written in
// alphabetical order by name regardless of cl's insertion order, per the
// format's iteration-order requirement.
func WriteChannelList(w *xdr.BufferWriter, cl *ChannelList) {
	for _, c := range cl.SortedByName() {
		w.WriteString(c.Name)
		w.WriteInt32(int32(c.Type))
		if c.PLinear {
			w.WriteUint8(1)
		} else {
			w.WriteUint8(0)
		}
		w.WriteBytes([]byte{0, 0, 0})
		w.WriteInt32(int32(c.XSampling))
		w.WriteInt32(int32(c.YSampling))
	}
	w.WriteString("")
}

// ReadChannelList deserializes a channel list previously written by
// WriteChannelList.
func ReadChannelList(r *xdr.Reader) (*ChannelList, error) {
	cl := NewChannelList()
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, ErrInvalidChannelList
		}
		if name == "" {
			return cl, nil
		}

		typ, err := r.ReadInt32()
		if err != nil {
			return nil, ErrInvalidChannelList
		}
		pLinear, err := r.ReadUint8()
		if err != nil {
			return nil, ErrInvalidChannelList
		}
		if _, err := r.ReadBytes(3); err != nil {
			return nil, ErrInvalidChannelList
		}
		xSampling, err := r.ReadInt32()
		if err != nil {
			return nil, ErrInvalidChannelList
		}
		ySampling, err := r.ReadInt32()
		if err != nil {
			return nil, ErrInvalidChannelList
		}

		cl.channels = append(cl.channels, Channel{
			Name:      name,
			Type:      PixelType(typ),
			PLinear:   pLinear != 0,
			XSampling: int(xSampling),
			YSampling: int(ySampling),
		})
	}
}
