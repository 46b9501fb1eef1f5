// ABOUTME: Session metadata record persisted alongside the auth cookie
// ABOUTME: Describes idle and expiry deadlines, never the credential itself

package sessionmeta

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed indicates a persisted record failed the structural type check.
var ErrMalformed = errors.New("malformed session metadata")

// Metadata is the canonical persisted record.
type Metadata struct {
	LastActivityAt     int64   `json:"last_activity_at"`     // epoch ms
	IdleTimeoutMinutes float64 `json:"idle_timeout_minutes"` // minutes of tolerated inactivity
	ExpiresAt          Instant `json:"expires_at"`           // ISO-8601 string or epoch ms
}

// Raw holds loosely typed session metadata as received from a login or
// renewal response. Any field may be missing or of the wrong type.
type Raw struct {
	LastActivityAt     any `json:"last_activity_at,omitempty"`
	IdleTimeoutMinutes any `json:"idle_timeout_minutes,omitempty"`
	ExpiresAt          any `json:"expires_at,omitempty"`
}

// Raw returns the record as codec input.
func (m Metadata) Raw() Raw {
	return Raw{
		LastActivityAt:     m.LastActivityAt,
		IdleTimeoutMinutes: m.IdleTimeoutMinutes,
		ExpiresAt:          m.ExpiresAt,
	}
}

// wireMetadata captures field presence so missing fields can be rejected.
type wireMetadata struct {
	LastActivityAt     json.RawMessage `json:"last_activity_at"`
	IdleTimeoutMinutes json.RawMessage `json:"idle_timeout_minutes"`
	ExpiresAt          json.RawMessage `json:"expires_at"`
}

// ParseMetadata decodes a persisted record. Every field must be present
// with the right JSON type: numbers for last_activity_at and
// idle_timeout_minutes, a string or number for expires_at. A record that
// fails any check is rejected whole.
func ParseMetadata(data []byte) (Metadata, error) {
	var wire wireMetadata
	if err := json.Unmarshal(data, &wire); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Metadata
	var lastActivity float64
	if err := decodeNumber(wire.LastActivityAt, &lastActivity); err != nil {
		return Metadata{}, fmt.Errorf("%w: last_activity_at: %v", ErrMalformed, err)
	}
	ms, ok := floatMillis(lastActivity)
	if !ok {
		return Metadata{}, fmt.Errorf("%w: last_activity_at out of range", ErrMalformed)
	}
	m.LastActivityAt = ms

	if err := decodeNumber(wire.IdleTimeoutMinutes, &m.IdleTimeoutMinutes); err != nil {
		return Metadata{}, fmt.Errorf("%w: idle_timeout_minutes: %v", ErrMalformed, err)
	}

	if isAbsent(wire.ExpiresAt) {
		return Metadata{}, fmt.Errorf("%w: expires_at: missing", ErrMalformed)
	}
	if err := json.Unmarshal(wire.ExpiresAt, &m.ExpiresAt); err != nil {
		return Metadata{}, fmt.Errorf("%w: expires_at: %v", ErrMalformed, err)
	}

	return m, nil
}

// decodeNumber requires raw to be a present JSON number.
func decodeNumber(raw json.RawMessage, dst *float64) error {
	if isAbsent(raw) {
		return errors.New("missing")
	}
	if raw[0] == '"' || raw[0] == '{' || raw[0] == '[' || raw[0] == 't' || raw[0] == 'f' {
		return fmt.Errorf("expected number, got %s", string(raw))
	}
	return json.Unmarshal(raw, dst)
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
