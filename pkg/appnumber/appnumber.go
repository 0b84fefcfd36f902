package appnumber

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet excludes the visually ambiguous characters I, O, 0 and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length is the total length of an application number.
const Length = 8

// New returns a fresh application number: 7 characters from Alphabet followed
// by one decimal digit. The digit rotates from the last digit of prev so that
// consecutive numbers never share a trailing digit; with no usable prev it is random.
func New(prev string) (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length-1; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}

	digit, err := nextDigit(prev)
	if err != nil {
		return "", err
	}
	b.WriteByte('0' + digit)
	return b.String(), nil
}

func nextDigit(prev string) (byte, error) {
	if len(prev) == Length {
		if last := prev[Length-1]; last >= '0' && last <= '9' {
			return (last - '0' + 1) % 10, nil
		}
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		return 0, err
	}
	return byte(n.Int64()), nil
}

// Valid reports whether s has the shape of an application number.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < Length-1; i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	last := s[Length-1]
	return last >= '0' && last <= '9'
}
