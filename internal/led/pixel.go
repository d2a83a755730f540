package led

import (
	"fmt"
	"image/color"
	"strings"
)

// Packed layout offsets, 0xWWRRGGBB.
const (
	whiteOffset uint8 = 0x18
	redOffset   uint8 = 0x10
	greenOffset uint8 = 0x08
	blueOffset  uint8 = 0x0
)

// Pixel is the colour of one LED. W is only transmitted by RGBW variants.
type Pixel struct {
	R, G, B, W uint8
}

// RGB returns a pixel with the white channel off.
func RGB(r, g, b uint8) Pixel {
	return Pixel{R: r, G: g, B: b}
}

// Packed returns p as 0xWWRRGGBB.
func (p Pixel) Packed() uint32 {
	return uint32(p.W)<<whiteOffset |
		uint32(p.R)<<redOffset |
		uint32(p.G)<<greenOffset |
		uint32(p.B)<<blueOffset
}

// Unpack is the inverse of Pixel.Packed.
func Unpack(v uint32) Pixel {
	return Pixel{
		R: channel(v, redOffset),
		G: channel(v, greenOffset),
		B: channel(v, blueOffset),
		W: channel(v, whiteOffset),
	}
}

func channel(v uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((v & mask) >> off)
}

// IsZero reports whether every channel is off.
func (p Pixel) IsZero() bool {
	return p == Pixel{}
}

// NRGBA is used by console drawers. The white channel is folded into R, G
// and B with saturation.
func (p Pixel) NRGBA() color.NRGBA {
	return color.NRGBA{R: addSat(p.R, p.W), G: addSat(p.G, p.W), B: addSat(p.B, p.W), A: 255}
}

func addSat(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

func (p Pixel) String() string {
	return fmt.Sprintf("#%08x", p.Packed())
}

// Variant is the fixed channel layout of a strip model.
type Variant int

const (
	// WS2812B strips take three channels in G, R, B order.
	WS2812B Variant = iota
	// SK6812RGBW strips take G, R, B and then the white channel.
	SK6812RGBW
)

// Channel identifies one colour component of a Pixel.
type Channel uint8

const (
	Red Channel = iota
	Green
	Blue
	White
)

var (
	orderGRB  = []Channel{Green, Red, Blue}
	orderGRBW = []Channel{Green, Red, Blue, White}
)

// Order returns the channels in wire order.
func (v Variant) Order() []Channel {
	if v == SK6812RGBW {
		return orderGRBW
	}
	return orderGRB
}

// Channels is the number of channels sent per pixel.
func (v Variant) Channels() int {
	return len(v.Order())
}

func (v Variant) String() string {
	switch v {
	case WS2812B:
		return "ws2812b"
	case SK6812RGBW:
		return "sk6812rgbw"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant maps a config name onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ws2812b", "ws2812", "grb", "":
		return WS2812B, nil
	case "sk6812rgbw", "sk6812", "grbw":
		return SK6812RGBW, nil
	default:
		return 0, fmt.Errorf("unknown led variant %q", s)
	}
}

// Get returns the value of channel c.
func (p Pixel) Get(c Channel) uint8 {
	switch c {
	case Red:
		return p.R
	case Green:
		return p.G
	case Blue:
		return p.B
	default:
		return p.W
	}
}

// Set stores v in channel c.
func (p *Pixel) Set(c Channel, v uint8) {
	switch c {
	case Red:
		p.R = v
	case Green:
		p.G = v
	case Blue:
		p.B = v
	default:
		p.W = v
	}
}
