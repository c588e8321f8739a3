package dbval

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Affinity is a SQLite-style column type affinity, derived from the declared
// column type. It steers conversion of loosely typed driver values (MySQL in
// particular surfaces most cells as []byte) into the right Value kind.
type Affinity int8

const (
	AffinityNumeric Affinity = iota
	AffinityInteger
	AffinityReal
	AffinityText
	AffinityBlob
)

// AffinityOf implements the SQLite type-affinity rules
// (https://sqlite.org/datatype3.html#determination_of_column_affinity).
func AffinityOf(declaredType string) Affinity {
	t := strings.ToUpper(declaredType)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"),
		strings.Contains(t, "ENUM"), strings.Contains(t, "JSON"), strings.Contains(t, "UUID"),
		strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return AffinityText
	case t == "" || strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || strings.Contains(t, "BYTEA"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	}
	return AffinityNumeric
}

// FromDriver converts a value produced by a database driver into a Value,
// using the column's affinity to resolve ambiguous representations.
func FromDriver(v any, aff Affinity) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null, nil
	case int64:
		return convertInt(v, aff), nil
	case int:
		return convertInt(int64(v), aff), nil
	case int32:
		return convertInt(int64(v), aff), nil
	case int16:
		return convertInt(int64(v), aff), nil
	case int8:
		return convertInt(int64(v), aff), nil
	case uint32:
		return convertInt(int64(v), aff), nil
	case uint64:
		// BIGINT UNSIGNED values past the int64 range keep their textual
		// form instead of wrapping negative.
		if v > math.MaxInt64 {
			return NewText(strconv.FormatUint(v, 10)), nil
		}
		return convertInt(int64(v), aff), nil
	case float64:
		return NewReal(v), nil
	case float32:
		return NewReal(float64(v)), nil
	case bool:
		if v {
			return NewInt(1), nil
		}
		return NewInt(0), nil
	case string:
		return convertText(v, aff), nil
	case []byte:
		return convertBytes(v, aff), nil
	case time.Time:
		return NewText(v.UTC().Format(time.RFC3339Nano)), nil
	}
	// Unusual driver types (pg numerics and the like) degrade to their
	// textual form; the comparator flags the degradation per column.
	if s, ok := v.(interface{ String() string }); ok {
		return NewText(s.String()), nil
	}
	return Null, errors.Newf("unsupported driver value of type %T", v)
}

func convertInt(i int64, aff Affinity) Value {
	if aff == AffinityReal {
		return NewReal(float64(i))
	}
	return NewInt(i)
}

func convertText(s string, aff Affinity) Value {
	switch aff {
	case AffinityInteger, AffinityNumeric:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NewReal(f)
		}
	case AffinityReal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NewReal(f)
		}
	case AffinityBlob:
		return NewBlob([]byte(s))
	}
	return NewText(s)
}

func convertBytes(b []byte, aff Affinity) Value {
	switch aff {
	case AffinityInteger, AffinityNumeric, AffinityReal, AffinityText:
		return convertText(string(b), aff)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return NewBlob(cp)
}
