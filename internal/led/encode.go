package led

import (
	"errors"
	"fmt"
)

// Each strip data bit is sent as one SPI nibble: a short high pulse for 0,
// a long high pulse for 1. Two data bits fit in one SPI byte.
const (
	T0H = 0x80 // 0 bit, upper nibble
	T1H = 0xE0 // 1 bit, upper nibble
	T0L = 0x08 // 0 bit, lower nibble
	T1L = 0x0E // 1 bit, lower nibble
)

// SignalBytes is the number of SPI bytes produced per channel byte.
const SignalBytes = 4

var ErrBadSignal = errors.New("led: not a valid bit pattern")

// encodeTable maps every channel value to its signal bytes.
var encodeTable [256][SignalBytes]byte

func init() {
	for v := 0; v < 256; v++ {
		encodeTable[v] = encode(uint8(v))
	}
}

func encode(v uint8) [SignalBytes]byte {
	var out [SignalBytes]byte
	for i := range out {
		var b byte = T0H
		if v&0x80 != 0 {
			b = T1H
		}
		if v&0x40 != 0 {
			b |= T1L
		} else {
			b |= T0L
		}
		out[i] = b
		v <<= 2
	}
	return out
}

// Encode expands a channel value into its four signal bytes, MSB first.
func Encode(v uint8) [SignalBytes]byte {
	return encodeTable[v]
}

// Decode reverses Encode.
func Decode(sig [SignalBytes]byte) (uint8, error) {
	var v uint8
	for i, b := range sig {
		hi, err := nibbleBit(b>>4, i, "high")
		if err != nil {
			return 0, err
		}
		lo, err := nibbleBit(b&0x0F, i, "low")
		if err != nil {
			return 0, err
		}
		v = v<<2 | hi<<1 | lo
	}
	return v, nil
}

func nibbleBit(n byte, i int, half string) (uint8, error) {
	switch n {
	case T0L:
		return 0, nil
	case T1L:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: byte %d %s nibble %04b", ErrBadSignal, i, half, n)
	}
}
