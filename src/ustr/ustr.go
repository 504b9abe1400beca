// Package ustr provides the immutable byte-string type used for the
// print_str/read_line syscall surface, adapted from the teacher's ustr
// package (there used for path components; here for UART line buffers).
package ustr

// Ustr is an immutable byte string.
type Ustr []uint8

// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// String renders the Ustr as a Go string for printing.
func (us Ustr) String() string {
	return string(us)
}

// MkUstr creates an empty Ustr.
func MkUstr() Ustr {
	return Ustr{}
}

// FromString converts a Go string into a Ustr, copying the bytes so the
// result does not alias the original string.
func FromString(s string) Ustr {
	b := make([]uint8, len(s))
	copy(b, s)
	return Ustr(b)
}
