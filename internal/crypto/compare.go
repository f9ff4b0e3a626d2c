package crypto

import "crypto/subtle"

// ConstantTimeEqual compares two strings in time that depends only on
// max(len(a), len(b)). The two legacy digest schemes have no built-in
// timing-safe verify, so their comparisons route through here.
//
// subtle.ConstantTimeCompare returns early on length mismatch, which leaks
// whether the candidate has the right length. This version always scans the
// full longer length, wrapping indices into the shorter operand so its access
// pattern is length-shaped too, and folds the length check in at the end.
func ConstantTimeEqual(a, b string) bool {
	ab := []byte(a)
	bb := []byte(b)

	sameLen := subtle.ConstantTimeEq(int32(len(ab)), int32(len(bb)))

	// Give empty operands one padding byte so the wrapped scan below always
	// has something to read; sameLen already records the real mismatch.
	if len(ab) == 0 {
		ab = []byte{0}
	}
	if len(bb) == 0 {
		bb = []byte{0}
	}

	n := max(len(ab), len(bb))
	match := 1
	for i := 0; i < n; i++ {
		match &= subtle.ConstantTimeByteEq(ab[i%len(ab)], bb[i%len(bb)])
	}

	return sameLen&match == 1
}
