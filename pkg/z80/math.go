package z80

import "github.com/pkg/errors"

// offsetAddress adjusts a base address by a signed offset
//
// Beware the operation may over/under-flow the base address.
func offsetAddress(base uint16, offset int8) uint16 {
	if offset > 0 {
		return base + uint16(offset)
	}
	offsetAbsolute := -int16(offset)
	return base - uint16(offsetAbsolute)
}

func readBitN(v byte, offset uint8) bool {
	return v&(1<<offset) > 0
}

func writeBitN(v byte, offset uint8, on bool) byte {
	if on {
		return v | (1 << offset)
	}
	return v &^ (1 << offset)
}

// HighByte returns bits 8-15 of v.
func HighByte(v uint16) byte {
	return byte(v >> 8)
}

// LowByte returns bits 0-7 of v.
func LowByte(v uint16) byte {
	return byte(v)
}

// WithHighByte replaces bits 8-15 of v, keeping the low byte.
func WithHighByte(v uint16, b byte) uint16 {
	return v&0x00FF | uint16(b)<<8
}

// WithLowByte replaces bits 0-7 of v, keeping the high byte.
func WithLowByte(v uint16, b byte) uint16 {
	return v&0xFF00 | uint16(b)
}

// Bit returns bit n of v. n must be in 0-7.
func Bit(v byte, n int) (bool, error) {
	if n < 0 || n > 7 {
		return false, errors.Wrapf(ErrInvalidArgument, "bit position %d outside of a byte", n)
	}
	return readBitN(v, uint8(n)), nil
}

// WithBit returns v with bit n set or cleared. n must be in 0-7.
func WithBit(v byte, n int, on bool) (byte, error) {
	if n < 0 || n > 7 {
		return v, errors.Wrapf(ErrInvalidArgument, "bit position %d outside of a byte", n)
	}
	return writeBitN(v, uint8(n), on), nil
}

// WordBit returns bit n of v. n must be in 0-15.
func WordBit(v uint16, n int) (bool, error) {
	if n < 0 || n > 15 {
		return false, errors.Wrapf(ErrInvalidArgument, "bit position %d outside of a word", n)
	}
	return v&(1<<uint(n)) != 0, nil
}

// WithWordBit returns v with bit n set or cleared. n must be in 0-15.
func WithWordBit(v uint16, n int, on bool) (uint16, error) {
	if n < 0 || n > 15 {
		return v, errors.Wrapf(ErrInvalidArgument, "bit position %d outside of a word", n)
	}
	if on {
		return v | 1<<uint(n), nil
	}
	return v &^ (1 << uint(n)), nil
}

// toWord joins a little-endian byte pair.
func toWord(low, high byte) uint16 {
	return uint16(high)<<8 | uint16(low)
}
