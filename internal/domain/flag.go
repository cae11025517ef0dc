package domain

// Severity grades compliance flags and audit events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ComplianceFlag is a non-authoritative signal attached to the record it was
// computed from. Flags are recomputed on every sync, never patched.
type ComplianceFlag struct {
	Type         string   `json:"type"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
}
