package query

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-odata-filter/internal/metadata"
	"github.com/shopspring/decimal"
)

// literalFor returns the canonical OData literal text and EDM type of a Go value.
// A nil value is the null literal and has no EDM type.
func literalFor(value interface{}) (string, string, error) {
	switch v := value.(type) {
	case nil:
		return "null", "", nil
	case bool:
		return strconv.FormatBool(v), metadata.EdmBoolean, nil
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return strconv.Itoa(v), metadata.EdmInt32, nil
		}
		return strconv.Itoa(v), metadata.EdmInt64, nil
	case int8:
		return strconv.FormatInt(int64(v), 10), metadata.EdmSByte, nil
	case int16:
		return strconv.FormatInt(int64(v), 10), metadata.EdmInt16, nil
	case int32:
		return strconv.FormatInt(int64(v), 10), metadata.EdmInt32, nil
	case int64:
		return strconv.FormatInt(v, 10), metadata.EdmInt64, nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), metadata.EdmByte, nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), metadata.EdmInt32, nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), metadata.EdmInt64, nil
	case uint:
		return uintLiteral(uint64(v))
	case uint64:
		return uintLiteral(v)
	case float32:
		return floatLiteral(float64(v), 32), metadata.EdmSingle, nil
	case float64:
		return floatLiteral(v, 64), metadata.EdmDouble, nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", metadata.EdmString, nil
	case decimal.Decimal:
		return v.String(), metadata.EdmDecimal, nil
	case uuid.UUID:
		return v.String(), metadata.EdmGuid, nil
	case time.Time:
		return v.Format(time.RFC3339Nano), metadata.EdmDateTimeOffset, nil
	case time.Duration:
		return "duration'" + isoDuration(v) + "'", metadata.EdmDuration, nil
	case []byte:
		return "binary'" + base64.URLEncoding.EncodeToString(v) + "'", metadata.EdmBinary, nil
	default:
		return "", "", fmt.Errorf("%w: %T", ErrUnsupportedLiteral, value)
	}
}

func uintLiteral(v uint64) (string, string, error) {
	if v > math.MaxInt64 {
		return "", "", fmt.Errorf("%w: %d exceeds Edm.Int64", ErrUnsupportedLiteral, v)
	}
	return strconv.FormatUint(v, 10), metadata.EdmInt64, nil
}

func floatLiteral(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "INF"
	case math.IsInf(v, -1):
		return "-INF"
	}
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// isoDuration formats d as an ISO 8601 day-time duration, e.g. P1DT2H30M.
func isoDuration(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	sb.WriteByte('P')

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute

	if days > 0 {
		fmt.Fprintf(&sb, "%dD", days)
	}
	if hours == 0 && minutes == 0 && d == 0 {
		if days == 0 {
			sb.WriteString("T0S")
		}
		return sb.String()
	}
	sb.WriteByte('T')
	if hours > 0 {
		fmt.Fprintf(&sb, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&sb, "%dM", minutes)
	}
	if d > 0 {
		sb.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		sb.WriteByte('S')
	}
	return sb.String()
}
