// Package fracindex produces sortable string keys that allow a new sibling to be
// placed between two existing ones without renumbering the others.
package fracindex

import (
	"errors"
	"strings"
)

const (
	alphabet  = "abcdefghijklmnopqrstuvwxyz"
	base      = len(alphabet)
	midSymbol = 'n'
)

var ErrInvalidBounds = errors.New("no key exists between the given bounds")

// Between returns a key k with a < k < b. An empty a means "before everything",
// an empty b means "after everything".
func Between(a, b string) (string, error) {
	if !IsValid(a) || !IsValid(b) {
		return "", ErrInvalidBounds
	}

	if b != "" && a >= b {
		return "", ErrInvalidBounds
	}

	width := max(len(a), len(b), 1)
	lower := toDigits(a, width)

	var upper []int

	if b == "" {
		// base^width, one past the largest key of this width
		upper = make([]int, width+1)
		upper[0] = 1
	} else {
		upper = toDigits(b, width)
	}

	mid := halve(add(lower, upper))

	key := fromDigits(mid)

	// Not enough precision at this width, go one symbol deeper
	if equalDigits(mid, lower) {
		key = fromDigits(lower) + string(midSymbol)
	}

	if key <= a || (b != "" && key >= b) {
		return "", ErrInvalidBounds
	}

	return key, nil
}

// GenerateInitialIndices returns n evenly spaced keys in ascending order.
func GenerateInitialIndices(n int) []string {
	if n <= 0 {
		return nil
	}

	width := 3

	if n <= base {
		width = 1
	} else if n <= base*base {
		width = 2
	}

	space := 1
	for i := 0; i < width; i++ {
		space *= base
	}

	// The all-"a" key is never used, nothing could be inserted before it
	spaced := min(n, space-1)
	keys := make([]string, 0, n)

	for i := 1; i <= spaced; i++ {
		keys = append(keys, encodeInt(i*space/(spaced+1), width))
	}

	// Keys beyond the room of this width get longer instead of colliding
	for len(keys) < n {
		next, err := Between(keys[len(keys)-1], "")

		if err != nil {
			return keys
		}

		keys = append(keys, next)
	}

	return keys
}

// IsValid reports whether every symbol of key belongs to the alphabet.
func IsValid(key string) bool {
	for _, r := range key {
		if r < 'a' || r > 'z' {
			return false
		}
	}

	return true
}

// toDigits right-pads key with the zero symbol to width and prepends a zero
// carry digit.
func toDigits(key string, width int) []int {
	digits := make([]int, width+1)

	for i := 0; i < len(key); i++ {
		digits[i+1] = strings.IndexByte(alphabet, key[i])
	}

	return digits
}

func fromDigits(digits []int) string {
	var sb strings.Builder

	for _, d := range digits[1:] {
		sb.WriteByte(alphabet[d])
	}

	return sb.String()
}

func encodeInt(value, width int) string {
	buf := make([]byte, width)

	for i := width - 1; i >= 0; i-- {
		buf[i] = alphabet[value%base]
		value /= base
	}

	return string(buf)
}

func add(left, right []int) []int {
	sum := make([]int, len(left))
	carry := 0

	for i := len(left) - 1; i >= 0; i-- {
		total := left[i] + right[i] + carry
		sum[i] = total % base
		carry = total / base
	}

	return sum
}

func halve(digits []int) []int {
	result := make([]int, len(digits))
	remainder := 0

	for i, d := range digits {
		current := remainder*base + d
		result[i] = current / 2
		remainder = current % 2
	}

	return result
}

func equalDigits(left, right []int) bool {
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}

	return true
}
