package score

import (
	"strings"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// Engine scores leads against a fixed policy. Scoring is pure: the same lead
// and policy always produce the same score, so re-scoring a stored lead is
// safe at any time.
type Engine struct {
	policy Policy
}

// NewEngine returns an engine for the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the engine's weight table.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Score computes a 0-100 priority score and tier for the lead.
func (e *Engine) Score(lead model.Lead) (float64, model.Tier) {
	total := e.titlePoints(lead.Title) +
		e.companyPoints(lead.Company, lead.CompanySize) +
		e.locationPoints(lead.Location) +
		e.contactPoints(lead) +
		e.engagementPoints(lead.Engagement)

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, e.policy.TierFor(total)
}

// Apply scores the lead and writes the result back onto it.
func (e *Engine) Apply(lead *model.Lead) {
	lead.Score, lead.Tier = e.Score(*lead)
}

func (e *Engine) titlePoints(title string) float64 {
	t := strings.ToLower(title)
	if t == "" {
		return 0
	}
	for _, band := range e.policy.TitleBands {
		for _, kw := range band.Keywords {
			if containsWord(t, kw) {
				return band.Points
			}
		}
	}
	return 0
}

func (e *Engine) companyPoints(company, size string) float64 {
	if pts, ok := e.policy.SizePoints[size]; ok {
		return pts
	}

	c := strings.ToLower(company)
	if c == "" {
		return 0
	}
	for _, org := range e.policy.KnownLargeOrgs {
		if containsWord(c, org) {
			return e.policy.LargeOrgPoints
		}
	}
	return e.policy.AnyCompanyPoints
}

func (e *Engine) locationPoints(location string) float64 {
	loc := strings.ToLower(location)
	if loc == "" {
		return 0
	}
	for _, region := range e.policy.TargetRegions {
		if containsWord(loc, region) {
			return e.policy.TargetRegionPoints
		}
	}
	for _, region := range e.policy.BroadRegions {
		if containsWord(loc, region) {
			return e.policy.BroadRegionPoints
		}
	}
	return 0
}

func (e *Engine) contactPoints(lead model.Lead) float64 {
	var pts float64
	if len(lead.Emails) > 0 {
		pts += e.policy.EmailPoints
	}
	if lead.Phone != "" || lead.WhatsApp != "" {
		pts += e.policy.PhonePoints
	}
	if lead.ProfileURL != "" {
		pts += e.policy.ProfileURLPoints
	}
	if pts > e.policy.ContactCap {
		pts = e.policy.ContactCap
	}
	return pts
}

func (e *Engine) engagementPoints(eng model.Engagement) float64 {
	var pts float64
	if eng.ConnectionAccepted {
		pts += e.policy.ConnectionPoints
	}
	if eng.ResponseReceived {
		pts += e.policy.ResponsePoints
	}
	return pts
}

// containsWord reports whether needle appears in haystack on word boundaries,
// so "du" matches "du telecom" but not "dubai" or "industry".
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
