package simple8b

import (
	"fmt"
	"math/bits"
)

// Uint128 is an unsigned 128-bit integer in two 64-bit halves.
//
// Deltas of 128-bit encodings are represented in two's complement, so the
// same type carries both unsigned encodings and signed differences; only
// the zigzag transform cares about the sign interpretation.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Uint128From returns lo zero-extended to 128 bits.
func Uint128From(lo uint64) Uint128 {
	return Uint128{Lo: lo}
}

// IsZero reports whether u is zero.
func (u Uint128) IsZero() bool {
	return u.Lo == 0 && u.Hi == 0
}

// Add returns u+v with wrap-around.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)

	return Uint128{Lo: lo, Hi: hi}
}

// Sub returns u-v with wrap-around. Applied to encodings it yields the
// two's complement delta that Add reverses.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)

	return Uint128{Lo: lo, Hi: hi}
}

// BitLen returns the number of bits required to represent u.
func (u Uint128) BitLen() int {
	if u.Hi != 0 {
		return 64 + bits.Len64(u.Hi)
	}

	return bits.Len64(u.Lo)
}

// ZigZag maps the two's complement value onto unsigned so that small
// magnitudes of either sign become small unsigned values.
func (u Uint128) ZigZag() Uint128 {
	// (u << 1) ^ (u >> 127), the shift right being arithmetic.
	shifted := Uint128{Lo: u.Lo << 1, Hi: u.Hi<<1 | u.Lo>>63}
	mask := -(u.Hi >> 63)

	return Uint128{Lo: shifted.Lo ^ mask, Hi: shifted.Hi ^ mask}
}

// UnZigZag reverses ZigZag.
func (u Uint128) UnZigZag() Uint128 {
	shifted := Uint128{Lo: u.Lo>>1 | u.Hi<<63, Hi: u.Hi >> 1}
	mask := -(u.Lo & 1)

	return Uint128{Lo: shifted.Lo ^ mask, Hi: shifted.Hi ^ mask}
}

// String formats u as a fixed-width hexadecimal value.
func (u Uint128) String() string {
	return fmt.Sprintf("0x%016x%016x", u.Hi, u.Lo)
}
