package compliance

import (
	"fmt"
	"strings"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/mapper"
)

// ruleNoNoticeChannel needs contact data to judge; an upstream record with
// none at all is skipped rather than flagged.
func ruleNoNoticeChannel(f facts) []domain.ComplianceFlag {
	if len(f.candidate.Contacts) == 0 || f.candidate.HasEmail() {
		return nil
	}
	return []domain.ComplianceFlag{{
		Type:     FlagNoNoticeChannel,
		Severity: domain.SeverityWarning,
		Message:  "Candidate has no email address on file; required AI-use notices cannot be delivered electronically",
	}}
}

func ruleCandidateJurisdiction(f facts) []domain.ComplianceFlag {
	var out []domain.ComplianceFlag
	for _, j := range matchLocations(f.catalog, f.candidate.Locations) {
		out = append(out, domain.ComplianceFlag{
			Type:         FlagCandidateJurisdiction,
			Severity:     domain.SeverityInfo,
			Message:      fmt.Sprintf("Candidate location falls under %s (%s)", j.Name, j.Citation),
			Jurisdiction: j.Code,
		})
	}
	return out
}

func rulePrivateCandidate(f facts) []domain.ComplianceFlag {
	if !f.candidate.IsPrivate {
		return nil
	}
	return []domain.ComplianceFlag{{
		Type:     FlagPrivateCandidate,
		Severity: domain.SeverityInfo,
		Message:  "Candidate is marked private in the ATS; notices and records must be handled out of band",
	}}
}

func ruleAIDisclosureMissing(f facts) []domain.ComplianceFlag {
	if !f.application.AtAIStage() || f.profile.AIDisclosureOnFile {
		return nil
	}
	return []domain.ComplianceFlag{{
		Type:     FlagAIDisclosureMissing,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("Application is at AI-driven stage %q but the organization has no AI-use disclosure on file", stageName(f.application)),
	}}
}

func ruleAINoticeRequired(f facts) []domain.ComplianceFlag {
	if !f.application.AtAIStage() {
		return nil
	}
	var out []domain.ComplianceFlag
	for _, j := range applicable(f) {
		if !j.RequiresAINotice && !j.RequiresAIConsent {
			continue
		}
		out = append(out, domain.ComplianceFlag{
			Type:         FlagAINoticeRequired,
			Severity:     domain.SeverityWarning,
			Message:      noticeMessage(j),
			Jurisdiction: j.Code,
		})
	}
	return out
}

func ruleAIVideoInterviewConsent(f facts) []domain.ComplianceFlag {
	if !f.application.AtAIStage() || f.application.CurrentStageName == nil {
		return nil
	}
	if !mapper.IsVideoInterviewStage(*f.application.CurrentStageName) {
		return nil
	}
	var out []domain.ComplianceFlag
	for _, j := range applicable(f) {
		if !j.VideoInterviewRules {
			continue
		}
		out = append(out, domain.ComplianceFlag{
			Type:         FlagAIVideoInterviewConsent,
			Severity:     domain.SeverityWarning,
			Message:      fmt.Sprintf("AI-analyzed video interview requires candidate consent and an explanation of how AI is used (%s)", j.Citation),
			Jurisdiction: j.Code,
		})
	}
	return out
}

func ruleAIRejectionHumanReview(f facts) []domain.ComplianceFlag {
	if !f.application.AtAIStage() || !f.application.Rejected() {
		return nil
	}
	var requiring []string
	for _, j := range applicable(f) {
		if j.RequiresHumanReview {
			requiring = append(requiring, j.Code)
		}
	}
	if f.profile.HumanReviewPolicyOnFile && len(requiring) == 0 {
		return nil
	}
	msg := "Candidate was rejected at an AI-driven stage; confirm a human reviewed the decision"
	switch {
	case len(requiring) > 0:
		msg += " (required in " + strings.Join(requiring, ", ") + ")"
	case !f.profile.HumanReviewPolicyOnFile:
		msg += " (no human-review policy on file)"
	}
	return []domain.ComplianceFlag{{
		Type:     FlagAIRejectionHumanReview,
		Severity: domain.SeverityWarning,
		Message:  msg,
	}}
}

func noticeMessage(j Jurisdiction) string {
	var b strings.Builder
	switch {
	case j.RequiresAIConsent && j.RequiresAINotice:
		b.WriteString("Candidate must be notified of and consent to AI use")
	case j.RequiresAIConsent:
		b.WriteString("Candidate must consent to AI use")
	default:
		b.WriteString("Candidate must be notified of AI use")
	}
	if j.NoticeLeadDays > 0 {
		fmt.Fprintf(&b, " at least %d business days before it is applied", j.NoticeLeadDays)
	}
	fmt.Fprintf(&b, " under %s (%s)", j.Name, j.Citation)
	return b.String()
}

func stageName(a *domain.SyncedApplication) string {
	if a.CurrentStageName == nil {
		return ""
	}
	return *a.CurrentStageName
}
