// Package cell provides a tagged-variant representation of a single
// database cell and a pure, total conversion to a JSON-serialisable
// value, per the value-normalisation table in the gateway's response
// envelope.
package cell

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies which variant a Cell holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindTime
	KindBytes
)

// Cell is a tagged union over the value shapes a tabular data store
// cell can take. Exactly one of the typed fields is meaningful,
// selected by Kind.
type Cell struct {
	Kind Kind

	Int    int64
	Float  float64
	Bool   bool
	String string
	Time   time.Time
	Bytes  []byte
}

// NewNull returns a null cell.
func NewNull() Cell { return Cell{Kind: KindNull} }

// NewInt wraps an integer-typed value.
func NewInt(v int64) Cell { return Cell{Kind: KindInt, Int: v} }

// NewFloat wraps a floating-point value. NaN and ±Inf are preserved
// here and normalised to null only at ToJSON time.
func NewFloat(v float64) Cell { return Cell{Kind: KindFloat, Float: v} }

// NewBool wraps a boolean value.
func NewBool(v bool) Cell { return Cell{Kind: KindBool, Bool: v} }

// NewString wraps a string value.
func NewString(v string) Cell { return Cell{Kind: KindString, String: v} }

// NewTime wraps a timestamp value.
func NewTime(v time.Time) Cell { return Cell{Kind: KindTime, Time: v} }

// NewBytes wraps a byte-string value.
func NewBytes(v []byte) Cell { return Cell{Kind: KindBytes, Bytes: v} }

// ToJSON converts the cell to a value safe to pass to encoding/json:
// every branch terminates in a JSON null, bool, number, or string.
// Non-finite floats and undecodable byte strings fall through to their
// documented fallbacks rather than producing invalid JSON.
func (c Cell) ToJSON() interface{} {
	switch c.Kind {
	case KindNull:
		return nil
	case KindInt:
		return c.Int
	case KindFloat:
		if math.IsNaN(c.Float) || math.IsInf(c.Float, 0) {
			return nil
		}
		return c.Float
	case KindBool:
		return c.Bool
	case KindString:
		return c.String
	case KindTime:
		return c.Time.UTC().Format(time.RFC3339)
	case KindBytes:
		if utf8.Valid(c.Bytes) {
			return string(c.Bytes)
		}
		return strings.ToValidUTF8(string(c.Bytes), "�")
	default:
		return nil
	}
}
