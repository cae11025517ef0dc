package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Ref is a related-object reference. The API returns either the bare id or,
// when the field is listed in expand, the full object; Ref accepts both and
// keeps the id plus a name when one is present.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID   string  `json:"id"`
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("decode reference: %w", err)
	}
	r.ID = obj.ID
	if obj.Name != nil {
		r.Name = *obj.Name
	}
	return nil
}

// RemoteData is one raw upstream payload returned when include_remote_data
// is set.
type RemoteData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// EmailAddress is a candidate email sub-object.
type EmailAddress struct {
	Value            *string `json:"value"`
	EmailAddressType *string `json:"email_address_type"`
}

// PhoneNumber is a candidate phone sub-object.
type PhoneNumber struct {
	Value           *string `json:"value"`
	PhoneNumberType *string `json:"phone_number_type"`
}

// URL is a candidate link sub-object.
type URL struct {
	Value   *string `json:"value"`
	URLType *string `json:"url_type"`
}

// Candidate mirrors the ATS candidate resource. Every optional upstream field
// is a pointer or slice so absence stays distinguishable from zero values.
type Candidate struct {
	ID                string         `json:"id"`
	RemoteID          *string        `json:"remote_id"`
	FirstName         *string        `json:"first_name"`
	LastName          *string        `json:"last_name"`
	Company           *string        `json:"company"`
	Title             *string        `json:"title"`
	RemoteCreatedAt   *time.Time     `json:"remote_created_at"`
	RemoteUpdatedAt   *time.Time     `json:"remote_updated_at"`
	LastInteractionAt *time.Time     `json:"last_interaction_at"`
	IsPrivate         *bool          `json:"is_private"`
	CanEmail          *bool          `json:"can_email"`
	Locations         []string       `json:"locations"`
	PhoneNumbers      []PhoneNumber  `json:"phone_numbers"`
	EmailAddresses    []EmailAddress `json:"email_addresses"`
	URLs              []URL          `json:"urls"`
	Tags              []string       `json:"tags"`
	Applications      []Ref          `json:"applications"`
	Attachments       []Ref          `json:"attachments"`
	RemoteWasDeleted  bool           `json:"remote_was_deleted"`
	ModifiedAt        *time.Time     `json:"modified_at"`
	RemoteData        []RemoteData   `json:"remote_data"`
}

// Application mirrors the ATS application resource.
type Application struct {
	ID               string       `json:"id"`
	RemoteID         *string      `json:"remote_id"`
	Candidate        *Ref         `json:"candidate"`
	Job              *Ref         `json:"job"`
	AppliedAt        *time.Time   `json:"applied_at"`
	RejectedAt       *time.Time   `json:"rejected_at"`
	Source           *string      `json:"source"`
	CreditedTo       *Ref         `json:"credited_to"`
	CurrentStage     *Ref         `json:"current_stage"`
	RejectReason     *Ref         `json:"reject_reason"`
	Offers           []Ref        `json:"offers"`
	RemoteWasDeleted bool         `json:"remote_was_deleted"`
	ModifiedAt       *time.Time   `json:"modified_at"`
	RemoteData       []RemoteData `json:"remote_data"`
}

// CandidateID returns the referenced candidate id or "".
func (a *Application) CandidateID() string {
	if a.Candidate == nil {
		return ""
	}
	return a.Candidate.ID
}

// Job mirrors the ATS job resource.
type Job struct {
	ID               string       `json:"id"`
	RemoteID         *string      `json:"remote_id"`
	Name             *string      `json:"name"`
	Description      *string      `json:"description"`
	Code             *string      `json:"code"`
	Status           *string      `json:"status"`
	Confidential     *bool        `json:"confidential"`
	Offices          []Ref        `json:"offices"`
	Departments      []Ref        `json:"departments"`
	HiringManagers   []Ref        `json:"hiring_managers"`
	Recruiters       []Ref        `json:"recruiters"`
	RemoteCreatedAt  *time.Time   `json:"remote_created_at"`
	RemoteUpdatedAt  *time.Time   `json:"remote_updated_at"`
	RemoteWasDeleted bool         `json:"remote_was_deleted"`
	ModifiedAt       *time.Time   `json:"modified_at"`
	RemoteData       []RemoteData `json:"remote_data"`
}

// Office mirrors the ATS office resource.
type Office struct {
	ID               string       `json:"id"`
	RemoteID         *string      `json:"remote_id"`
	Name             *string      `json:"name"`
	Location         *string      `json:"location"`
	RemoteWasDeleted bool         `json:"remote_was_deleted"`
	ModifiedAt       *time.Time   `json:"modified_at"`
	RemoteData       []RemoteData `json:"remote_data"`
}

// InterviewStage mirrors the ATS job-interview-stage resource.
type InterviewStage struct {
	ID               string       `json:"id"`
	RemoteID         *string      `json:"remote_id"`
	Name             *string      `json:"name"`
	Job              *Ref         `json:"job"`
	StageOrder       *int         `json:"stage_order"`
	RemoteWasDeleted bool         `json:"remote_was_deleted"`
	ModifiedAt       *time.Time   `json:"modified_at"`
	RemoteData       []RemoteData `json:"remote_data"`
}

// Activity mirrors the ATS activity resource (notes, emails, other events).
type Activity struct {
	ID               string       `json:"id"`
	RemoteID         *string      `json:"remote_id"`
	User             *Ref         `json:"user"`
	Candidate        *Ref         `json:"candidate"`
	RemoteCreatedAt  *time.Time   `json:"remote_created_at"`
	ActivityType     *string      `json:"activity_type"`
	Subject          *string      `json:"subject"`
	Body             *string      `json:"body"`
	Visibility       *string      `json:"visibility"`
	RemoteWasDeleted bool         `json:"remote_was_deleted"`
	ModifiedAt       *time.Time   `json:"modified_at"`
	RemoteData       []RemoteData `json:"remote_data"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NextCursor returns the continuation cursor or "" on the last page.
func (p *Page[T]) NextCursor() string {
	if p == nil || p.Next == nil {
		return ""
	}
	return *p.Next
}
