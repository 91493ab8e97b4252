package qrpayload

import (
	"encoding/json"
	"errors"
	"time"
)

// PayloadType identifies check-in QR codes. Other features embed their own
// type discriminator, and scanners must reject those without crashing.
const PayloadType = "service-checkin"

var (
	// ErrMalformedPayload is returned when the bytes are not well-formed JSON
	// or a required field is missing.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedPayloadType is returned when the payload carries a type
	// discriminator belonging to a different feature.
	ErrUnsupportedPayloadType = errors.New("unsupported payload type")
)

// Payload is the projection of a service session embedded in a QR code.
// It carries no secret and no signature; the expiry is a redundant copy so a
// scanner can do a fast local freshness check before calling the backend.
type Payload struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"sessionId"`
	ServiceName string    `json:"serviceName"`
	ScopeID     string    `json:"scopeId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Encode serializes a payload deterministically, so re-rendering a QR for
// display never changes its meaning.
func Encode(p Payload) ([]byte, error) {
	p.Type = PayloadType
	p.ExpiresAt = p.ExpiresAt.UTC()
	return json.Marshal(p)
}

// Decode parses QR bytes into a payload, distinguishing malformed input from
// QR codes that belong to other features.
func Decode(data []byte) (Payload, error) {
	var raw struct {
		Type        *string    `json:"type"`
		SessionID   *string    `json:"sessionId"`
		ServiceName *string    `json:"serviceName"`
		ScopeID     *string    `json:"scopeId"`
		ExpiresAt   *time.Time `json:"expiresAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if raw.Type == nil || *raw.Type == "" {
		return Payload{}, ErrMalformedPayload
	}
	if *raw.Type != PayloadType {
		return Payload{}, ErrUnsupportedPayloadType
	}
	if raw.SessionID == nil || *raw.SessionID == "" ||
		raw.ServiceName == nil || raw.ScopeID == nil || raw.ExpiresAt == nil {
		return Payload{}, ErrMalformedPayload
	}
	return Payload{
		Type:        *raw.Type,
		SessionID:   *raw.SessionID,
		ServiceName: *raw.ServiceName,
		ScopeID:     *raw.ScopeID,
		ExpiresAt:   raw.ExpiresAt.UTC(),
	}, nil
}
