package webhook

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireguard.io/atssync/internal/domain"
)

const sampleBody = `{
  "hook": {"id": "hook-1", "event": "Candidate.changed", "target": "https://hooks.example.com/merge"},
  "linked_account": {
    "id": "la-1",
    "integration": "Greenhouse",
    "integration_slug": "greenhouse",
    "category": "ats",
    "end_user_origin_id": "org-1",
    "end_user_organization_name": "Acme",
    "end_user_email_address": "ops@acme.test",
    "status": "COMPLETE"
  },
  "data": {"id": "cand-1", "model": "Candidate", "first_name": "Ada"}
}`

func TestParse(t *testing.T) {
	env, err := Parse([]byte(sampleBody))
	require.NoError(t, err)
	ev := env.ToEvent()

	assert.Equal(t, domain.EventCandidateUpdated, ev.Type)
	assert.Equal(t, "Candidate.changed", ev.RawEvent)
	assert.Equal(t, "hook-1", ev.HookID)
	assert.Equal(t, "cand-1", ev.EntityID)
	assert.Equal(t, "org-1", ev.OrganizationID())
	assert.Equal(t, "greenhouse", ev.LinkedAccount.IntegrationSlug)
	assert.NotEmpty(t, ev.Data)
}

func TestParse_AccountEventWithoutData(t *testing.T) {
	env, err := Parse([]byte(`{"hook":{"event":"LinkedAccount.deleted"},"linked_account":{"id":"la-1"},"data":null}`))
	require.NoError(t, err)
	ev := env.ToEvent()
	assert.Equal(t, domain.EventLinkedAccountDeleted, ev.Type)
	assert.Empty(t, ev.EntityID)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "  "},
		{"not json", "hook=1"},
		{"missing event", `{"hook":{},"linked_account":{"id":"la-1"}}`},
		{"data not object", `{"hook":{"event":"candidate.added"},"data":[1,2]}`},
		{"wrong shape", `{"hook":"candidate.added"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestVerifier(t *testing.T) {
	body := []byte(sampleBody)
	v := NewVerifier("shh")
	require.True(t, v.Enabled())

	sig := v.Sign(body)
	raw, err := base64.URLEncoding.DecodeString(sig)
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  string
		want bool
	}{
		{"base64url", sig, true},
		{"std base64", base64.StdEncoding.EncodeToString(raw), true},
		{"raw url", base64.RawURLEncoding.EncodeToString(raw), true},
		{"hex", hex.EncodeToString(raw), true},
		{"padded with spaces", "  " + sig + " ", true},
		{"blank", "", false},
		{"garbage", "not-a-signature", false},
		{"other secret", NewVerifier("other").Sign(body), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(body, tt.sig))
		})
	}

	assert.False(t, v.Verify([]byte(sampleBody+" "), sig), "signature covers the exact raw body")
}

func TestVerifier_Disabled(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Enabled())
	assert.True(t, v.Verify([]byte("{}"), ""))

	var nilVerifier *Verifier
	assert.False(t, nilVerifier.Enabled())
	assert.True(t, nilVerifier.Verify([]byte("{}"), "x"))
}
