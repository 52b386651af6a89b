// Package bech32 implements the checksummed base32 text encoding used for
// Lightning-related identifiers (BIP-173 style, without the 90-character
// length cap so LNURL tokens decode).
package bech32

import (
	"errors"
	"fmt"
	"strings"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var generator = []uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

var (
	// ErrMissingSeparator means the last "1" separator is absent or leaves
	// no room for a human-readable part.
	ErrMissingSeparator = errors.New("bech32: missing separator")
	// ErrInvalidChecksum means the trailing checksum did not verify.
	ErrInvalidChecksum = errors.New("bech32: invalid checksum")
	// ErrMixedCase means the string mixes upper and lower case characters.
	ErrMixedCase = errors.New("bech32: mixed case")
	// ErrEmptyHRP means Encode was given no human-readable part.
	ErrEmptyHRP = errors.New("bech32: empty human-readable part")
)

// UnknownCharacterError reports a character outside the bech32 charset.
type UnknownCharacterError rune

func (e UnknownCharacterError) Error() string {
	return fmt.Sprintf("bech32: unknown character %q", rune(e))
}

func polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= generator[i]
			}
		}
	}
	return chk
}

// hrpExpand mixes the human-readable part into the checksum as its
// character high bits, a zero, then the low bits.
func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}

func createChecksum(hrp string, data []byte) []byte {
	values := append(append(hrpExpand(hrp), data...), 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte(mod >> uint(5*(5-i)) & 31)
	}
	return checksum
}

// Encode assembles hrp + "1" + data + checksum. Each data value must be a
// 5-bit word; use ConvertBits to regroup bytes first.
func Encode(hrp string, data []byte) (string, error) {
	if hrp == "" {
		return "", ErrEmptyHRP
	}
	for _, v := range data {
		if v >= 32 {
			return "", fmt.Errorf("bech32: data value %d out of range", v)
		}
	}
	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(data) + 6)
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, v := range data {
		sb.WriteByte(charset[v])
	}
	for _, v := range createChecksum(hrp, data) {
		sb.WriteByte(charset[v])
	}
	return sb.String(), nil
}

// Decode splits a bech32 string into its human-readable part and 5-bit data
// words, verifying the checksum. Input may be upper or lower case but not
// both; the returned hrp is lowercase.
func Decode(s string) (string, []byte, error) {
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return "", nil, ErrMixedCase
	}
	s = lower

	sep := strings.LastIndexByte(s, '1')
	if sep < 1 || sep+7 > len(s) {
		return "", nil, ErrMissingSeparator
	}
	hrp := s[:sep]

	data := make([]byte, 0, len(s)-sep-1)
	for _, c := range s[sep+1:] {
		idx := strings.IndexRune(charset, c)
		if idx < 0 {
			return "", nil, UnknownCharacterError(c)
		}
		data = append(data, byte(idx))
	}

	if !verifyChecksum(hrp, data) {
		return "", nil, ErrInvalidChecksum
	}
	return hrp, data[:len(data)-6], nil
}

// ConvertBits regroups values between bit widths, most significant bits
// first. With pad set, leftover bits are zero-padded into a final group;
// without it, non-zero leftovers (or a leftover of a full input group) are
// rejected as malformed trailing padding.
func ConvertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	if fromBits < 1 || fromBits > 8 || toBits < 1 || toBits > 8 {
		return nil, fmt.Errorf("bech32: invalid bit width %d->%d", fromBits, toBits)
	}
	var acc uint32
	var bits uint
	maxV := uint32(1)<<toBits - 1
	out := make([]byte, 0, len(data)*int(fromBits)/int(toBits)+1)
	for _, v := range data {
		if uint32(v) >= 1<<fromBits {
			return nil, fmt.Errorf("bech32: value %d exceeds %d bits", v, fromBits)
		}
		acc = acc<<fromBits | uint32(v)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxV))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits)&maxV))
		}
	} else if bits >= fromBits || acc<<(toBits-bits)&maxV != 0 {
		return nil, errors.New("bech32: invalid trailing padding")
	}
	return out, nil
}
