package compliance

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hireguard.io/atssync/internal/mapper"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Jurisdiction is one catalog entry.
type Jurisdiction struct {
	Code                string   `yaml:"code"`
	Name                string   `yaml:"name"`
	LocationKeywords    []string `yaml:"location_keywords"`
	RegionCodes         []string `yaml:"region_codes"`
	RequiresAINotice    bool     `yaml:"requires_ai_notice"`
	RequiresAIConsent   bool     `yaml:"requires_ai_consent"`
	RequiresHumanReview bool     `yaml:"requires_human_review"`
	VideoInterviewRules bool     `yaml:"video_interview_rules"`
	NoticeLeadDays      int      `yaml:"notice_lead_days"`
	Citation            string   `yaml:"citation"`

	keywords [][]string
}

// Catalog is the ordered set of jurisdictions the engine knows. Order is
// preserved in generated flags.
type Catalog struct {
	Version       string         `yaml:"version"`
	Jurisdictions []Jurisdiction `yaml:"jurisdictions"`

	byCode map[string]int
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog file; an empty path returns the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compliance catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse compliance catalog: %w", err)
	}
	c.byCode = make(map[string]int, len(c.Jurisdictions))
	for i := range c.Jurisdictions {
		j := &c.Jurisdictions[i]
		j.Code = strings.TrimSpace(j.Code)
		if j.Code == "" {
			return nil, fmt.Errorf("compliance catalog: jurisdiction %d has no code", i)
		}
		if _, dup := c.byCode[j.Code]; dup {
			return nil, fmt.Errorf("compliance catalog: duplicate jurisdiction %q", j.Code)
		}
		if j.NoticeLeadDays < 0 {
			return nil, fmt.Errorf("compliance catalog: %s notice_lead_days must not be negative", j.Code)
		}
		c.byCode[j.Code] = i
		for k, rc := range j.RegionCodes {
			j.RegionCodes[k] = strings.ToLower(strings.TrimSpace(rc))
		}
		for _, kw := range j.LocationKeywords {
			if tokens := mapper.Tokenize(kw); len(tokens) > 0 {
				j.keywords = append(j.keywords, tokens)
			}
		}
	}
	return &c, nil
}

// Lookup finds a jurisdiction by code.
func (c *Catalog) Lookup(code string) (Jurisdiction, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return Jurisdiction{}, false
	}
	return c.Jurisdictions[i], true
}

// MatchLocation reports whether a free-form location names j.
func (j Jurisdiction) MatchLocation(location string) bool {
	tokens := mapper.Tokenize(location)
	for _, kw := range j.keywords {
		if mapper.HasPhrase(tokens, kw) {
			return true
		}
	}
	return j.matchRegionCode(location)
}

var countryUS = [][]string{{"us"}, {"usa"}, {"united", "states"}, {"united", "states", "of", "america"}}

// matchRegionCode accepts a region code only in the "City, XX" or
// "City, XX, US" shapes, optionally with a postal code after XX. A code in
// the last of three or more segments is a country ("Toronto, ON, CA").
func (j Jurisdiction) matchRegionCode(location string) bool {
	if len(j.RegionCodes) == 0 {
		return false
	}
	var segments [][]string
	for _, part := range strings.Split(location, ",") {
		if tokens := mapper.Tokenize(part); len(tokens) > 0 {
			segments = append(segments, tokens)
		}
	}
	for i := 1; i < len(segments); i++ {
		if !j.isRegionSegment(segments[i]) {
			continue
		}
		if i == len(segments)-1 {
			if len(segments) == 2 {
				return true
			}
			continue
		}
		if isCountryUS(segments[i+1]) {
			return true
		}
	}
	return false
}

func (j Jurisdiction) isRegionSegment(tokens []string) bool {
	matched := false
	for _, rc := range j.RegionCodes {
		if tokens[0] == rc {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, t := range tokens[1:] {
		if strings.Trim(t, "0123456789") != "" {
			return false
		}
	}
	return true
}

func isCountryUS(tokens []string) bool {
	for _, c := range countryUS {
		if len(c) == len(tokens) && mapper.HasPhrase(tokens, c) {
			return true
		}
	}
	return false
}
