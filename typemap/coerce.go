package typemap

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05.999999"
)

var decimalArgs = regexp.MustCompile(`\(\s*\d+\s*,\s*(\d+)\s*\)`)

// ToDocumentValue converts a value scanned from MySQL into its document form.
// A nil raw value returns nil, and callers leave the field out of the
// document.
func ToDocumentValue(relationalType string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	dt, err := ToDocumentType(relationalType)
	if err != nil {
		return nil, err
	}

	switch dt.Kind {
	case KindInteger:
		if dt.unbounded() {
			return toUnsignedDecimal128(raw)
		}
		n, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		if dt.wide() {
			return n, nil
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32 for %s", n, relationalType)
		}
		return int32(n), nil

	case KindDecimal:
		return toDecimal128(relationalType, raw)

	case KindDouble:
		return toFloat64(raw)

	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		default:
			n, err := toInt64(raw)
			if err != nil {
				return nil, err
			}
			return n != 0, nil
		}

	case KindDate:
		if dt.Keyword == "YEAR" {
			n, err := toInt64(raw)
			if err != nil {
				return nil, err
			}
			return int32(n), nil
		}
		t, err := toTime(raw)
		if err != nil {
			return nil, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil

	case KindTimestamp:
		if dt.Keyword == "TIME" {
			return toString(raw), nil
		}
		t, err := toTime(raw)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil

	case KindBinary, KindBlob:
		var data []byte
		switch v := raw.(type) {
		case []byte:
			data = append([]byte(nil), v...)
		case string:
			data = []byte(v)
		default:
			n, err := toInt64(raw)
			if err != nil {
				return nil, err
			}
			data = []byte(strconv.FormatInt(n, 10))
		}
		return primitive.Binary{Subtype: 0x00, Data: data}, nil

	case KindArray:
		if seq, ok := toSequence(raw); ok {
			return seq, nil
		}
		s := toString(raw)
		if s == "" {
			return primitive.A{}, nil
		}
		items := strings.Split(s, ",")
		arr := make(primitive.A, len(items))
		for i, item := range items {
			arr[i] = item
		}
		return arr, nil

	case KindObject:
		if seq, ok := toSequence(raw); ok {
			return seq, nil
		}
		return toString(raw), nil

	default:
		return toString(raw), nil
	}
}

// ToRelationalValue converts a document field back into a value that can be
// bound to a MySQL statement. A nil value becomes NULL.
func ToRelationalValue(relationalType string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	dt, err := ToDocumentType(relationalType)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case primitive.Decimal128:
		return v.String(), nil
	case primitive.Binary:
		return v.Data, nil
	case primitive.DateTime:
		return formatTime(dt, v.Time()), nil
	case time.Time:
		return formatTime(dt, v), nil
	case primitive.ObjectID:
		return v.Hex(), nil
	case primitive.A:
		return joinSequence(v), nil
	case []any:
		return joinSequence(v), nil
	case []string:
		return strings.Join(v, ","), nil
	case primitive.D, primitive.M, map[string]any:
		return nil, ErrNestedObject
	case int32:
		return int64(v), nil
	default:
		return v, nil
	}
}

func formatTime(dt DocumentType, t time.Time) any {
	t = t.UTC()
	switch dt.Keyword {
	case "DATE":
		return t.Format(dateLayout)
	case "YEAR":
		return int64(t.Year())
	}
	return t.Format(datetimeLayout)
}

func joinSequence(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = toString(item)
	}
	return strings.Join(parts, ",")
}

func toSequence(raw any) (primitive.A, bool) {
	switch v := raw.(type) {
	case []string:
		arr := make(primitive.A, len(v))
		for i, s := range v {
			arr[i] = s
		}
		return arr, true
	case []any:
		return primitive.A(append([]any(nil), v...)), true
	case primitive.A:
		return v, true
	}
	return nil, false
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(datetimeLayout)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(v), nil
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", raw)
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer: %w", err)
	}
	return n, nil
}

func toFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte, string:
		f, err := strconv.ParseFloat(strings.TrimSpace(toString(v)), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse float: %w", err)
		}
		return f, nil
	default:
		n, err := toInt64(raw)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case primitive.DateTime:
		return v.Time(), nil
	case []byte, string:
		s := strings.TrimSpace(toString(v))
		for _, layout := range []string{datetimeLayout, dateLayout, time.RFC3339Nano} {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("failed to parse time %q", s)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time", raw)
}

// toUnsignedDecimal128 stores a BIGINT UNSIGNED value, which may not fit in
// an int64, as a decimal with no fraction.
func toUnsignedDecimal128(raw any) (primitive.Decimal128, error) {
	var s string
	switch v := raw.(type) {
	case uint64:
		s = strconv.FormatUint(v, 10)
	case []byte, string:
		s = strings.TrimSpace(toString(v))
	default:
		n, err := toInt64(raw)
		if err != nil {
			return primitive.Decimal128{}, err
		}
		s = strconv.FormatInt(n, 10)
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to parse unsigned integer: %w", err)
	}
	dec, err := primitive.ParseDecimal128(s)
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to build decimal128: %w", err)
	}
	return dec, nil
}

// toDecimal128 keeps the declared scale so that 1.50 in a DECIMAL(4,2)
// column is stored as 1.50 and not 1.5.
func toDecimal128(relationalType string, raw any) (primitive.Decimal128, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int64:
		d = decimal.NewFromInt(v)
	default:
		d, err = decimal.NewFromString(strings.TrimSpace(toString(raw)))
		if err != nil {
			return primitive.Decimal128{}, fmt.Errorf("failed to parse decimal: %w", err)
		}
	}

	scale := int32(0)
	if m := decimalArgs.FindStringSubmatch(relationalType); m != nil {
		n, _ := strconv.Atoi(m[1])
		scale = int32(n)
	} else if exp := d.Exponent(); exp < 0 {
		scale = -exp
	}

	dec, err := primitive.ParseDecimal128(d.StringFixed(scale))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to build decimal128: %w", err)
	}
	return dec, nil
}
