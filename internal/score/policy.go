// Package score implements deterministic lead scoring for sales priority.
package score

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// TitleBand maps title keywords to a seniority score. Bands are checked in
// order, most senior first; the first band with a matching keyword wins.
type TitleBand struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Points   float64  `yaml:"points"`
}

// Policy is the canonical weight table driving every scoring path. All
// weights and bands are data, not code; one policy instance scores leads
// from every source.
type Policy struct {
	TitleBands []TitleBand `yaml:"title_bands"`

	// SizePoints maps company-size buckets to organization-scale points.
	SizePoints map[string]float64 `yaml:"size_points"`
	// KnownLargeOrgs are company-name substrings treated as enterprise scale.
	KnownLargeOrgs  []string `yaml:"known_large_orgs"`
	LargeOrgPoints  float64  `yaml:"large_org_points"`
	AnyCompanyPoints float64 `yaml:"any_company_points"`

	// TargetRegions get the full location bonus; BroadRegions the smaller one.
	TargetRegions     []string `yaml:"target_regions"`
	BroadRegions      []string `yaml:"broad_regions"`
	TargetRegionPoints float64 `yaml:"target_region_points"`
	BroadRegionPoints  float64 `yaml:"broad_region_points"`

	EmailPoints      float64 `yaml:"email_points"`
	PhonePoints      float64 `yaml:"phone_points"`
	ProfileURLPoints float64 `yaml:"profile_url_points"`
	ContactCap       float64 `yaml:"contact_cap"`

	ConnectionPoints float64 `yaml:"connection_points"`
	ResponsePoints   float64 `yaml:"response_points"`

	// Tier thresholds; a score at or above a threshold lands in that tier.
	HotThreshold    float64 `yaml:"hot_threshold"`
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
}

// DefaultPolicy returns the stock weight table.
func DefaultPolicy() Policy {
	return Policy{
		TitleBands: []TitleBand{
			{Name: "c_suite", Keywords: []string{"cto", "cio", "chief technology", "chief information", "chief"}, Points: 35},
			{Name: "vp_director", Keywords: []string{"vp", "vice president", "director"}, Points: 30},
			{Name: "manager", Keywords: []string{"manager"}, Points: 20},
			{Name: "head_lead", Keywords: []string{"head", "lead"}, Points: 15},
		},
		SizePoints: map[string]float64{
			"1000+":    20,
			"501-1000": 18,
			"201-500":  15,
			"51-200":   12,
			"11-50":    8,
			"1-10":     4,
		},
		KnownLargeOrgs: []string{
			"emirates", "etisalat", "du", "adnoc", "dewa", "sewa",
			"airport", "bank", "university", "hospital",
		},
		LargeOrgPoints:   20,
		AnyCompanyPoints: 5,

		TargetRegions: []string{"ras al khaimah", "rak", "sharjah"},
		BroadRegions:  []string{"dubai", "abu dhabi", "uae", "emirates"},
		// The home emirates are the product's whole market; a senior title
		// at a large company there must clear the High bar on a guessed
		// email alone (30 title + 20 size + 20 region + 10 email = 80).
		TargetRegionPoints: 20,
		BroadRegionPoints:  10,

		EmailPoints:      10,
		PhonePoints:      8,
		ProfileURLPoints: 7,
		ContactCap:       25,

		ConnectionPoints: 5,
		ResponsePoints:   5,

		HotThreshold:    90,
		HighThreshold:   80,
		MediumThreshold: 70,
	}
}

// LoadPolicy reads a scoring policy from a YAML file. Fields left unset fall
// back to the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "score: read policy %s", path)
	}

	var wrapper struct {
		Score Policy `yaml:"score"`
	}
	wrapper.Score = p
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return p, eris.Wrap(err, "score: parse policy")
	}

	return wrapper.Score, nil
}

// Validate checks that the policy is internally consistent.
func (p Policy) Validate() error {
	var errs []string

	if len(p.TitleBands) == 0 {
		errs = append(errs, "at least one title band is required")
	}
	for _, band := range p.TitleBands {
		if band.Points < 0 {
			errs = append(errs, fmt.Sprintf("title band %q points must be >= 0", band.Name))
		}
		if len(band.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("title band %q has no keywords", band.Name))
		}
	}

	points := map[string]float64{
		"large_org_points":     p.LargeOrgPoints,
		"target_region_points": p.TargetRegionPoints,
		"broad_region_points":  p.BroadRegionPoints,
		"email_points":         p.EmailPoints,
		"phone_points":         p.PhonePoints,
		"profile_url_points":   p.ProfileURLPoints,
		"contact_cap":          p.ContactCap,
		"connection_points":    p.ConnectionPoints,
		"response_points":      p.ResponsePoints,
	}
	for name, v := range points {
		if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}

	if p.BroadRegionPoints > p.TargetRegionPoints {
		errs = append(errs, "broad_region_points must not exceed target_region_points")
	}

	thresholds := []struct {
		name string
		v    float64
	}{
		{"hot_threshold", p.HotThreshold},
		{"high_threshold", p.HighThreshold},
		{"medium_threshold", p.MediumThreshold},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 100 || math.IsNaN(th.v) {
			errs = append(errs, th.name+" must be between 0 and 100")
		}
	}
	if !(p.HotThreshold >= p.HighThreshold && p.HighThreshold >= p.MediumThreshold) {
		errs = append(errs, "tier thresholds must be ordered hot >= high >= medium")
	}

	if len(errs) > 0 {
		return eris.Errorf("score: policy validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TierFor maps a score to its priority tier under this policy.
func (p Policy) TierFor(score float64) model.Tier {
	switch {
	case score >= p.HotThreshold:
		return model.TierHot
	case score >= p.HighThreshold:
		return model.TierHigh
	case score >= p.MediumThreshold:
		return model.TierMedium
	default:
		return model.TierLow
	}
}
