package simhash

import (
	"strings"
	"testing"
)

const about = "Acme Labs is a mobile app studio based in Austin. Our team of twenty engineers ships iOS and Android apps for fintech startups, with a focus on payments, onboarding and compliance."

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		maxDist int
		minDist int
	}{
		{"identical", about, about, 0, 0},
		{"case and punctuation", about, strings.ToUpper(strings.ReplaceAll(about, ",", "")), 0, 0},
		{"one word changed", about, strings.Replace(about, "twenty", "thirty", 1), 16, 0},
		{"unrelated", about, "Quarterly results for the regional grain cooperative show rising yields and falling input costs across all member farms.", 64, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Distance(Fingerprint(tt.a), Fingerprint(tt.b))
			if d > tt.maxDist || d < tt.minDist {
				t.Errorf("distance = %d, want in [%d, %d]", d, tt.minDist, tt.maxDist)
			}
		})
	}
}

func TestFingerprint_Empty(t *testing.T) {
	for _, s := range []string{"", "   \t\n", "--- !!!"} {
		if fp := Fingerprint(s); fp != 0 {
			t.Errorf("Fingerprint(%q) = %064b, want 0", s, fp)
		}
	}
	if Fingerprint("hello") == 0 {
		t.Error("single word should produce a non-zero fingerprint")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0xFF, 0xFF, 0},
		{0, ^uint64(0), 64},
		{0, 1, 1},
		{0, 3, 2},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
	if !Similar(0, 3, 2) || Similar(0, 7, 2) {
		t.Error("Similar threshold is inclusive")
	}
}

func TestIndex(t *testing.T) {
	x := NewIndex(3)
	a := Fingerprint(about)
	x.Add(a, 7)
	x.Add(0, 9)

	if x.Len() != 1 {
		t.Fatalf("Len = %d, zero fingerprints must not be stored", x.Len())
	}
	if id, ok := x.Match(Fingerprint(about + " ")); !ok || id != 7 {
		t.Errorf("Match = %d, %v", id, ok)
	}
	if _, ok := x.Match(Fingerprint("Completely different wording about grain cooperatives and farm yields.")); ok {
		t.Error("unrelated text matched")
	}
	if _, ok := x.Match(0); ok {
		t.Error("zero fingerprint matched")
	}
}
