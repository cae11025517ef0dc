// Package compliance evaluates normalized candidates and applications
// against a jurisdiction catalog and returns severity-tagged flags.
//
// Flags are additive evidence, never a verdict. Rules are independent pure
// predicates: the same input always yields the same flags in the same
// order, and a rule that lacks the data it needs contributes nothing.
//
// Import Path: hireguard.io/atssync/internal/compliance
package compliance

import (
	"hireguard.io/atssync/internal/domain"
)

// Flag types.
const (
	FlagNoNoticeChannel         = "no_notice_channel"
	FlagCandidateJurisdiction   = "candidate_jurisdiction"
	FlagPrivateCandidate        = "private_candidate"
	FlagAIDisclosureMissing     = "ai_disclosure_missing"
	FlagAINoticeRequired        = "ai_notice_required"
	FlagAIVideoInterviewConsent = "ai_video_interview_consent"
	FlagAIRejectionHumanReview  = "ai_rejection_human_review"
)

// facts is the immutable snapshot a rule sees.
type facts struct {
	catalog     *Catalog
	candidate   *domain.SyncedCandidate
	application *domain.SyncedApplication
	profile     *domain.ComplianceProfile
}

type rule func(f facts) []domain.ComplianceFlag

// Engine holds the catalog and the ordered rule sets. It is safe for
// concurrent use.
type Engine struct {
	catalog          *Catalog
	candidateRules   []rule
	applicationRules []rule
}

// NewEngine creates an Engine over catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{
		catalog: catalog,
		candidateRules: []rule{
			ruleNoNoticeChannel,
			ruleCandidateJurisdiction,
			rulePrivateCandidate,
		},
		applicationRules: []rule{
			ruleAIDisclosureMissing,
			ruleAINoticeRequired,
			ruleAIVideoInterviewConsent,
			ruleAIRejectionHumanReview,
		},
	}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// GenerateCandidateFlags evaluates the candidate rules.
func (e *Engine) GenerateCandidateFlags(c domain.SyncedCandidate, profile domain.ComplianceProfile) []domain.ComplianceFlag {
	return e.run(e.candidateRules, facts{catalog: e.catalog, candidate: &c, profile: &profile})
}

// GenerateApplicationFlags evaluates the application rules. The candidate
// contributes its location-derived jurisdictions.
func (e *Engine) GenerateApplicationFlags(a domain.SyncedApplication, c domain.SyncedCandidate, profile domain.ComplianceProfile) []domain.ComplianceFlag {
	return e.run(e.applicationRules, facts{catalog: e.catalog, candidate: &c, application: &a, profile: &profile})
}

// CandidateJurisdictions returns the catalog entries matching any of the
// candidate's locations, in catalog order.
func (e *Engine) CandidateJurisdictions(c domain.SyncedCandidate) []Jurisdiction {
	return matchLocations(e.catalog, c.Locations)
}

func (e *Engine) run(rules []rule, f facts) []domain.ComplianceFlag {
	out := []domain.ComplianceFlag{}
	for _, r := range rules {
		out = append(out, r(f)...)
	}
	return out
}

func matchLocations(catalog *Catalog, locations []string) []Jurisdiction {
	var out []Jurisdiction
	if catalog == nil || len(locations) == 0 {
		return out
	}
	for _, j := range catalog.Jurisdictions {
		for _, loc := range locations {
			if j.MatchLocation(loc) {
				out = append(out, j)
				break
			}
		}
	}
	return out
}

// applicable is the union of the profile's jurisdictions and the ones the
// candidate is located in, in catalog order. Profile codes unknown to the
// catalog are ignored.
func applicable(f facts) []Jurisdiction {
	if f.catalog == nil {
		return nil
	}
	located := map[string]bool{}
	if f.candidate != nil {
		for _, j := range matchLocations(f.catalog, f.candidate.Locations) {
			located[j.Code] = true
		}
	}
	var out []Jurisdiction
	for _, j := range f.catalog.Jurisdictions {
		if located[j.Code] || f.profile.HasJurisdiction(j.Code) {
			out = append(out, j)
		}
	}
	return out
}
