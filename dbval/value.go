// Package dbval models a single database cell as a tagged variant over the
// SQLite storage classes. Comparisons are type-aware: NULL equals NULL and
// sorts before every other value, integers and reals compare numerically,
// and values of incompatible kinds fall back to comparing their canonical
// string forms.
package dbval

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type Kind int8

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	}
	return fmt.Sprintf("Kind(%d)", int8(k))
}

// Value is an immutable cell value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

var Null = Value{kind: KindNull}

func NewInt(i int64) Value {
	return Value{kind: KindInteger, i: i}
}

func NewReal(f float64) Value {
	return Value{kind: KindReal, f: f}
}

func NewText(s string) Value {
	return Value{kind: KindText, s: s}
}

func NewBlob(b []byte) Value {
	return Value{kind: KindBlob, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Int() int64 {
	return v.i
}

func (v Value) Real() float64 {
	return v.f
}

func (v Value) Text() string {
	return v.s
}

func (v Value) Blob() []byte {
	return v.b
}

// String returns the canonical textual form of the value. This form is also
// what cross-kind comparisons degrade to.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		return base64.StdEncoding.EncodeToString(v.b)
	}
	return "?"
}

func (v Value) isNumeric() bool {
	return v.kind == KindInteger || v.kind == KindReal
}

func (v Value) asReal() float64 {
	if v.kind == KindInteger {
		return float64(v.i)
	}
	return v.f
}

// Compare orders values the way SQLite orders a mixed column:
// NULL < numeric < TEXT < BLOB, with integers and reals interleaved
// numerically. This keeps application-side key comparison consistent with
// an engine-side ORDER BY (NULLS FIRST on engines where that is a choice).
func (v Value) Compare(o Value) int {
	vc, oc := v.storageClass(), o.storageClass()
	if vc != oc {
		if vc < oc {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindNull:
		return 0
	case KindInteger, KindReal:
		if v.kind == KindInteger && o.kind == KindInteger {
			switch {
			case v.i < o.i:
				return -1
			case v.i > o.i:
				return 1
			}
			return 0
		}
		a, b := v.asReal(), o.asReal()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case KindText:
		switch {
		case v.s < o.s:
			return -1
		case v.s > o.s:
			return 1
		}
		return 0
	case KindBlob:
		return bytes.Compare(v.b, o.b)
	}
	return 0
}

// storageClass collapses Integer and Real into one ordering class.
func (v Value) storageClass() int {
	switch v.kind {
	case KindNull:
		return 0
	case KindInteger, KindReal:
		return 1
	case KindText:
		return 2
	}
	return 3
}

// Equal reports type-aware equality. NULL equals NULL; NULL never equals the
// empty string; integer 2 equals real 2.0.
func (v Value) Equal(o Value) bool {
	return v.Compare(o) == 0
}

// EqualLoose is Equal with a string-form fallback for values whose kinds are
// not directly comparable (e.g. the same cell read as TEXT on one side and
// BLOB on the other after a declared-type change). The second return value
// reports whether the fallback was taken.
func (v Value) EqualLoose(o Value) (eq bool, lossy bool) {
	if v.kind == o.kind || (v.isNumeric() && o.isNumeric()) {
		return v.Equal(o), false
	}
	if v.kind == KindNull || o.kind == KindNull {
		return false, false
	}
	return v.String() == o.String(), true
}

// MarshalJSON writes the wire form of a value: null, a JSON number for
// INTEGER/REAL, a JSON string for TEXT, and base64 text for BLOB.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInteger:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindReal:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	case KindBlob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// Values is one physical row (or key tuple), positionally aligned to a
// column-name header.
type Values []Value

// CompareAt lexicographically compares the sub-tuples of v and o selected by
// the given index lists. The index lists must have equal length.
func (v Values) CompareAt(vIdx, oIdx []int, o Values) int {
	for i := range vIdx {
		if c := v[vIdx[i]].Compare(o[oIdx[i]]); c != 0 {
			return c
		}
	}
	return 0
}

// HasNullAt reports whether any selected position holds NULL.
func (v Values) HasNullAt(idx []int) bool {
	for _, i := range idx {
		if v[i].IsNull() {
			return true
		}
	}
	return false
}

func (v Values) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, val := range v {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(val.String())
	}
	buf.WriteByte(')')
	return buf.String()
}
