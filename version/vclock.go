package version

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// VClockError represents errors that can occur while decoding a VClock
type VClockError struct {
	Msg string
	Err error
}

func (e *VClockError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *VClockError) Unwrap() error {
	return e.Err
}

// MaxVClockBytes bounds the decoded size of a causal context token.
// Riak prunes vector clocks well below this size.
const MaxVClockBytes = 64 << 10

// VClock is an opaque causal context token issued by the store.
// The zero value is the empty context.
type VClock struct {
	raw []byte
}

// NewVClock wraps raw token bytes. The input is copied.
func NewVClock(raw []byte) VClock {
	if len(raw) == 0 {
		return VClock{}
	}
	return VClock{raw: bytes.Clone(raw)}
}

// ParseVClock decodes the base64 text form produced by String.
// Blank input yields the zero VClock.
func ParseVClock(s string) (VClock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VClock{}, nil
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxVClockBytes {
		return VClock{}, &VClockError{Msg: fmt.Sprintf("vclock exceeds %d bytes", MaxVClockBytes)}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return VClock{}, &VClockError{Msg: "invalid vclock encoding", Err: err}
	}
	return VClock{raw: raw}, nil
}

// IsZero reports whether the token is empty.
func (v VClock) IsZero() bool {
	return len(v.raw) == 0
}

// Bytes returns a copy of the raw token.
func (v VClock) Bytes() []byte {
	return bytes.Clone(v.raw)
}

// String returns the base64 text form, or "" for the zero VClock.
func (v VClock) String() string {
	if v.IsZero() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(v.raw)
}

// Equal reports whether two tokens are byte-identical.
// It says nothing about causal order.
func (v VClock) Equal(other VClock) bool {
	return bytes.Equal(v.raw, other.raw)
}

// MarshalText implements encoding.TextMarshaler.
func (v VClock) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VClock) UnmarshalText(text []byte) error {
	parsed, err := ParseVClock(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
