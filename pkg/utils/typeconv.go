package utils

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var dateTimeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// ConvertDateTime turns a column or document value into a timestamp.
// A nil value yields a nil time and no error.
func ConvertDateTime(val interface{}) (*time.Time, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	case primitive.DateTime:
		t := v.Time()
		return &t, nil
	case primitive.Timestamp:
		t := time.Unix(int64(v.T), 0).UTC()
		return &t, nil
	case int64:
		t := time.Unix(v, 0).UTC()
		return &t, nil
	case string:
		for _, f := range dateTimeFormats {
			if t, err := time.Parse(f, v); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

// ConvertToInt64 converts integral values of any common representation.
func ConvertToInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not integral", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", val)
	}
}

// IsIntegral reports whether val is a Go integer type.
func IsIntegral(val interface{}) bool {
	switch val.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// NormalizeKey maps driver-specific key representations onto a small set of
// comparable types: int64, string, time.Time and primitive.ObjectID.
func NormalizeKey(val interface{}) interface{} {
	switch v := val.(type) {
	case []byte:
		return string(v)
	case float64:
		if v == math.Trunc(v) {
			return int64(v)
		}
		return v
	case primitive.DateTime:
		return v.Time()
	}
	if IsIntegral(val) {
		n, err := ConvertToInt64(val)
		if err == nil {
			return n
		}
	}
	return val
}

// CompareKeys orders two primary-key values. It returns -1, 0 or 1, or an
// error when the values are not mutually comparable.
func CompareKeys(a, b interface{}) (int, error) {
	a, b = NormalizeKey(a), NormalizeKey(b)
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y), nil
		}
		if y, ok := b.(float64); ok {
			return cmp.Compare(float64(x), y), nil
		}
		if y, ok := b.(string); ok {
			if n, err := strconv.ParseInt(y, 10, 64); err == nil {
				return cmp.Compare(x, n), nil
			}
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y), nil
		}
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, float64(y)), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
		if y, ok := b.(int64); ok {
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return cmp.Compare(n, y), nil
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(x.Hex(), y.Hex()), nil
		}
	}
	return 0, fmt.Errorf("cannot compare keys of type %T and %T", a, b)
}

// FormatKey renders a key for use inside a file name. Only int64 keys render
// as a plain integer; any other key that would read back as one gets an "s"
// prefix, since integer suffixes are taken as resume points.
func FormatKey(val interface{}) string {
	switch v := NormalizeKey(val).(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case primitive.ObjectID:
		return notInteger(v.Hex())
	case time.Time:
		return v.UTC().Format("20060102T150405Z")
	case string:
		return notInteger(sanitizeName(v))
	default:
		return notInteger(sanitizeName(fmt.Sprintf("%v", v)))
	}
}

func notInteger(s string) string {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return "s" + s
	}
	return s
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, s)
}
