// Package mapper translates ATS wire resources into the normalized records
// stored by the sync pipeline. Every function is pure and total: absent
// upstream fields become empty values or nil pointers, never a panic.
//
// Import Path: hireguard.io/atssync/internal/mapper
package mapper

import (
	"fmt"
	"strings"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/provider"
)

// FlagAIScreeningStage is raised by MapApplication when the current stage
// name looks AI-driven.
const FlagAIScreeningStage = "ai_screening_stage_detected"

// JobInfo is the resolved job an application points at.
type JobInfo struct {
	RemoteID string
	Name     *string
	Offices  []string
}

// StageInfo is the resolved current interview stage.
type StageInfo struct {
	RemoteID string
	Name     string
}

// JobInfoFromJob extracts JobInfo. Office names come from expanded office
// refs; unexpanded refs fall back to their id.
func JobInfoFromJob(job *provider.Job) *JobInfo {
	if job == nil {
		return nil
	}
	info := &JobInfo{RemoteID: job.ID, Name: trimmedPtr(job.Name), Offices: []string{}}
	for _, o := range job.Offices {
		switch {
		case strings.TrimSpace(o.Name) != "":
			info.Offices = append(info.Offices, strings.TrimSpace(o.Name))
		case o.ID != "":
			info.Offices = append(info.Offices, o.ID)
		}
	}
	return info
}

// StageInfoFromStage extracts StageInfo; a stage without a name yields nil.
func StageInfoFromStage(stage *provider.InterviewStage) *StageInfo {
	if stage == nil || trimmedPtr(stage.Name) == nil {
		return nil
	}
	return &StageInfo{RemoteID: stage.ID, Name: *trimmedPtr(stage.Name)}
}

// StageInfoFromRef uses an expanded current_stage reference when it carries
// a name, sparing a stage fetch.
func StageInfoFromRef(ref *provider.Ref) *StageInfo {
	if ref == nil || strings.TrimSpace(ref.Name) == "" {
		return nil
	}
	return &StageInfo{RemoteID: ref.ID, Name: strings.TrimSpace(ref.Name)}
}

// MapCandidate normalizes a candidate. Flags start empty and LastSyncedAt is
// left for the caller to stamp.
func MapCandidate(raw provider.Candidate, orgID, integrationID string) domain.SyncedCandidate {
	c := domain.SyncedCandidate{
		OrganizationID:       orgID,
		IntegrationID:        integrationID,
		RemoteID:             raw.ID,
		FirstName:            deref(raw.FirstName),
		LastName:             deref(raw.LastName),
		Company:              deref(raw.Company),
		Title:                deref(raw.Title),
		Contacts:             mapContacts(raw),
		Locations:            nonEmpty(raw.Locations),
		Tags:                 nonEmpty(raw.Tags),
		ApplicationRemoteIDs: refIDs(raw.Applications),
		IsPrivate:            raw.IsPrivate != nil && *raw.IsPrivate,
		RemoteCreatedAt:      raw.RemoteCreatedAt,
		RemoteUpdatedAt:      raw.RemoteUpdatedAt,
		Flags:                []domain.ComplianceFlag{},
	}
	return c
}

// MapApplication normalizes an application. candidateID is the internal id
// of the already-persisted candidate. job and stage are optional; when nil
// the derived fields stay unset.
func MapApplication(raw provider.Application, orgID, integrationID, candidateID string, job *JobInfo, stage *StageInfo) domain.SyncedApplication {
	a := domain.SyncedApplication{
		OrganizationID:    orgID,
		IntegrationID:     integrationID,
		RemoteID:          raw.ID,
		CandidateID:       candidateID,
		CandidateRemoteID: raw.CandidateID(),
		JobOffices:        []string{},
		Source:            deref(raw.Source),
		AppliedAt:         raw.AppliedAt,
		RejectedAt:        raw.RejectedAt,
		Flags:             []domain.ComplianceFlag{},
	}
	if raw.Job != nil {
		a.JobRemoteID = raw.Job.ID
	}
	if raw.CurrentStage != nil {
		a.CurrentStageRemoteID = raw.CurrentStage.ID
	}
	if raw.RejectReason != nil && strings.TrimSpace(raw.RejectReason.Name) != "" {
		reason := strings.TrimSpace(raw.RejectReason.Name)
		a.RejectReason = &reason
	}

	if job != nil {
		a.JobName = job.Name
		if job.Offices != nil {
			a.JobOffices = append([]string{}, job.Offices...)
		}
	}

	if stage == nil {
		stage = StageInfoFromRef(raw.CurrentStage)
	}
	if stage != nil {
		name := stage.Name
		isAI := IsAIScreeningStage(name)
		a.CurrentStageName = &name
		a.IsAIStage = &isAI
		if stage.RemoteID != "" {
			a.CurrentStageRemoteID = stage.RemoteID
		}
		if isAI {
			a.Flags = append(a.Flags, domain.ComplianceFlag{
				Type:     FlagAIScreeningStage,
				Severity: domain.SeverityInfo,
				Message:  fmt.Sprintf("Current stage %q appears to use AI-driven screening", name),
			})
		}
	}
	return a
}

// mapContacts flattens emails then phones, dropping blank values.
func mapContacts(raw provider.Candidate) []domain.ContactMethod {
	out := make([]domain.ContactMethod, 0, len(raw.EmailAddresses)+len(raw.PhoneNumbers))
	for _, e := range raw.EmailAddresses {
		if v := strings.TrimSpace(deref(e.Value)); v != "" {
			out = append(out, domain.ContactMethod{Kind: domain.ContactEmail, Value: v, Type: deref(e.EmailAddressType)})
		}
	}
	for _, p := range raw.PhoneNumbers {
		if v := strings.TrimSpace(deref(p.Value)); v != "" {
			out = append(out, domain.ContactMethod{Kind: domain.ContactPhone, Value: v, Type: deref(p.PhoneNumberType)})
		}
	}
	return out
}

func refIDs(refs []provider.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.ID != "" {
			out = append(out, r.ID)
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func trimmedPtr(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
