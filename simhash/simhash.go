// Package simhash fingerprints lead page text so near-duplicate leads
// found through different listings collapse into one.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// shingleSize is the number of words per hashed feature.
const shingleSize = 2

// Fingerprint computes a 64-bit SimHash of text. Text is lowercased,
// split on anything that is not a letter or digit, and hashed as
// overlapping word shingles with FNV-64a. Empty text yields 0.
func Fingerprint(text string) uint64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	add := func(feature string) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	if len(words) < shingleSize {
		add(words[0])
	}
	for i := 0; i+shingleSize <= len(words); i++ {
		add(strings.Join(words[i:i+shingleSize], " "))
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Index remembers fingerprints and finds near matches by linear scan.
// It is not safe for concurrent use.
type Index struct {
	threshold int
	entries   []entry
}

type entry struct {
	fp uint64
	id int
}

// NewIndex creates an Index matching within threshold bits.
func NewIndex(threshold int) *Index {
	return &Index{threshold: threshold}
}

// Match returns the id of the first stored fingerprint near fp.
// A zero fingerprint never matches.
func (x *Index) Match(fp uint64) (int, bool) {
	if fp == 0 {
		return 0, false
	}
	for _, e := range x.entries {
		if Similar(e.fp, fp, x.threshold) {
			return e.id, true
		}
	}
	return 0, false
}

// Add stores fp under id.
func (x *Index) Add(fp uint64, id int) {
	if fp == 0 {
		return
	}
	x.entries = append(x.entries, entry{fp: fp, id: id})
}

// Len is the number of stored fingerprints.
func (x *Index) Len() int {
	return len(x.entries)
}
