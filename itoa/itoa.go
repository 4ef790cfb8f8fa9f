// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package itoa renders signed integers as base-N text into caller owned
// buffers, without allocating.
//
// Negative values are only signed in base 10. In any other base the
// magnitude is rendered, so Format(buf, -8, 2) yields "1000", the same text
// as Format(buf, 8, 2).
package itoa

const (
	// MaxLen is the longest text Format can produce: the base 2 magnitude of
	// math.MinInt32.
	MaxLen = 32
	// DecimalLen is the longest base 10 text: a sign and 10 digits.
	DecimalLen = 11

	digits = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Format writes the text of value in base into buf and returns the slice of
// buf that holds it.
//
// base must be in [2, 36] and buf must hold at least Len(value, base) bytes.
// Both are programming errors and panic. No terminator is written.
func Format(buf []byte, value int32, base int) []byte {
	checkBase(base)
	if n := Len(value, base); len(buf) < n {
		panic("itoa: buffer too small")
	}
	if value == 0 {
		buf[0] = '0'
		return buf[:1]
	}
	neg := value < 0
	u := magnitude(value)
	b := uint32(base)
	i := 0
	for u != 0 {
		buf[i] = digits[u%b]
		u /= b
		i++
	}
	if neg && base == 10 {
		buf[i] = '-'
		i++
	}
	reverse(buf[:i])
	return buf[:i]
}

// Len returns the number of bytes Format needs for value in base.
func Len(value int32, base int) int {
	checkBase(base)
	if value == 0 {
		return 1
	}
	n := 0
	if value < 0 && base == 10 {
		n++
	}
	b := uint32(base)
	for u := magnitude(value); u != 0; u /= b {
		n++
	}
	return n
}

// Append appends the text of value in base to dst and returns the extended
// slice.
func Append(dst []byte, value int32, base int) []byte {
	var buf [MaxLen]byte
	return append(dst, Format(buf[:], value, base)...)
}

// String returns the text of value in base.
func String(value int32, base int) string {
	var buf [MaxLen]byte
	return string(Format(buf[:], value, base))
}

func magnitude(value int32) uint32 {
	if value < 0 {
		return uint32(-int64(value))
	}
	return uint32(value)
}

// reverse swaps b end for end in place.
func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func checkBase(base int) {
	if base < 2 || base > len(digits) {
		panic("itoa: illegal base")
	}
}
