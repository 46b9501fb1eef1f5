// ABOUTME: Wire representation of an instant that may be epoch millis or ISO-8601
// ABOUTME: Preserves the original JSON form so records round-trip unchanged

package sessionmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// isoLayout matches the millisecond ISO-8601 form used when an expiry is synthesized.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// dateLayouts are tried in order when parsing a textual instant.
// Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Instant is an instant as it appeared on the wire: a JSON number of epoch
// milliseconds or a JSON string holding a date.
type Instant struct {
	num    float64
	text   string
	isText bool
	set    bool
}

// InstantFromMillis returns a numeric instant.
func InstantFromMillis(ms int64) Instant {
	return Instant{num: float64(ms), set: true}
}

// InstantFromString returns a textual instant. The text is not validated.
func InstantFromString(s string) Instant {
	return Instant{text: s, isText: true, set: true}
}

// InstantFromTime returns the ISO-8601 (UTC, millisecond) form of t.
func InstantFromTime(t time.Time) Instant {
	return InstantFromString(t.UTC().Format(isoLayout))
}

// IsZero reports whether the instant was never set.
func (i Instant) IsZero() bool {
	return !i.set
}

// IsText reports whether the instant is carried as a string.
func (i Instant) IsText() bool {
	return i.isText
}

// Millis returns the instant as epoch milliseconds. ok is false when the
// instant is unset, non-finite, out of range, or an unparsable string.
func (i Instant) Millis() (int64, bool) {
	if !i.set {
		return 0, false
	}
	if i.isText {
		return parseDateMillis(i.text)
	}
	return floatMillis(i.num)
}

// String returns the wire text of the instant.
func (i Instant) String() string {
	if !i.set {
		return ""
	}
	if i.isText {
		return i.text
	}
	return fmt.Sprintf("%.0f", i.num)
}

// MarshalJSON emits the instant in its original form.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.set {
		return []byte("null"), nil
	}
	if i.isText {
		return json.Marshal(i.text)
	}
	if math.IsNaN(i.num) || math.IsInf(i.num, 0) {
		return nil, fmt.Errorf("instant is not finite: %v", i.num)
	}
	return json.Marshal(i.num)
}

// UnmarshalJSON accepts a JSON number or a JSON string and rejects every
// other type.
func (i *Instant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty instant")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = InstantFromString(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*i = Instant{num: n, set: true}
		return nil
	default:
		return fmt.Errorf("instant must be a number or string, got %s", string(data))
	}
}

// parseDateMillis parses s with the accepted date layouts.
func parseDateMillis(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// floatMillis converts a finite float within int64 range to milliseconds.
func floatMillis(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
