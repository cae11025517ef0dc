// Package webhook parses and authenticates inbound ATS webhook deliveries.
//
// Import Path: hireguard.io/atssync/internal/webhook
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hireguard.io/atssync/internal/domain"
)

// ErrMalformedEnvelope is wrapped by every Parse failure.
var ErrMalformedEnvelope = errors.New("malformed webhook envelope")

// Hook identifies the subscription that fired.
type Hook struct {
	ID     string `json:"id"`
	Event  string `json:"event"`
	Target string `json:"target"`
}

// Envelope is the JSON body of a delivery.
type Envelope struct {
	Hook          Hook                 `json:"hook"`
	LinkedAccount domain.LinkedAccount `json:"linked_account"`
	Data          json.RawMessage      `json:"data,omitempty"`
}

type dataHeader struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// Parse decodes body into an Envelope. hook.event is required; data, when
// present, must be a JSON object.
func Parse(body []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEnvelope)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if strings.TrimSpace(env.Hook.Event) == "" {
		return nil, fmt.Errorf("%w: hook.event is required", ErrMalformedEnvelope)
	}
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		var hdr dataHeader
		if err := json.Unmarshal(env.Data, &hdr); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrMalformedEnvelope, err)
		}
	}
	return &env, nil
}

// ToEvent converts the envelope into a dispatchable event.
func (e *Envelope) ToEvent() *domain.WebhookEvent {
	ev := &domain.WebhookEvent{
		HookID:        e.Hook.ID,
		RawEvent:      e.Hook.Event,
		Type:          domain.NormalizeEventType(e.Hook.Event),
		LinkedAccount: e.LinkedAccount,
		Data:          e.Data,
	}
	var hdr dataHeader
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &hdr) == nil {
		ev.EntityID = strings.TrimSpace(hdr.ID)
	}
	return ev
}
