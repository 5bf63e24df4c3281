package types

import (
	"fmt"
	"strconv"
	"time"
)

// ToText renders a scalar value as text.
// Supports the integer and float kinds, string, []byte, bool and time.Time;
// nil renders as the empty string.
func ToText(v interface{}) string {
	switch i := v.(type) {
	case nil:
		return ""
	case string:
		return i
	case []byte:
		return string(i)
	case int64:
		return strconv.FormatInt(i, 10)
	case int:
		return strconv.FormatInt(int64(i), 10)
	case int32:
		return strconv.FormatInt(int64(i), 10)
	case int16:
		return strconv.FormatInt(int64(i), 10)
	case int8:
		return strconv.FormatInt(int64(i), 10)
	case uint:
		return strconv.FormatUint(uint64(i), 10)
	case uint64:
		return strconv.FormatUint(i, 10)
	case uint32:
		return strconv.FormatUint(uint64(i), 10)
	case uint16:
		return strconv.FormatUint(uint64(i), 10)
	case uint8:
		return strconv.FormatUint(uint64(i), 10)
	case float64:
		return strconv.FormatFloat(i, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(i), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(i)
	case time.Time:
		return i.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(i)
	}
}

// KeyString normalizes a primary key value so that keys read from different
// engines (or from text files) compare equal when they denote the same value.
// It returns false for NULL and empty keys.
func KeyString(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	s := ToText(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// NormalizeValue converts driver-specific representations into plain Go values.
// Text columns come back from some drivers as []byte; they are returned as string.
func NormalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
