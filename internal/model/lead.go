// Package model defines the canonical lead entities shared by the pipeline.
package model

import "time"

// PipelineStatus represents a lead's position in the sales pipeline.
// Progression is forward-only; Won and Lost are terminal.
type PipelineStatus string

const (
	StatusNew              PipelineStatus = "new"
	StatusEnriched         PipelineStatus = "enriched"
	StatusConnectPending   PipelineStatus = "connect_pending"
	StatusConnected        PipelineStatus = "connected"
	StatusContacted        PipelineStatus = "contacted"
	StatusResponded        PipelineStatus = "responded"
	StatusQualified        PipelineStatus = "qualified"
	StatusMeetingScheduled PipelineStatus = "meeting_scheduled"
	StatusProposalSent     PipelineStatus = "proposal_sent"
	StatusNegotiation      PipelineStatus = "negotiation"
	StatusWon              PipelineStatus = "won"
	StatusLost             PipelineStatus = "lost"
)

// statusOrder places each status on the forward progression. Won and Lost
// share the terminal rank.
var statusOrder = map[PipelineStatus]int{
	StatusNew:              0,
	StatusEnriched:         1,
	StatusConnectPending:   2,
	StatusConnected:        3,
	StatusContacted:        4,
	StatusResponded:        5,
	StatusQualified:        6,
	StatusMeetingScheduled: 7,
	StatusProposalSent:     8,
	StatusNegotiation:      9,
	StatusWon:              10,
	StatusLost:             10,
}

// Rank returns the status position in the pipeline, or -1 for unknown values.
func (s PipelineStatus) Rank() int {
	r, ok := statusOrder[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether the status ends the pipeline.
func (s PipelineStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// CanTransition reports whether moving from s to next is a legal forward step.
func (s PipelineStatus) CanTransition(next PipelineStatus) bool {
	if s.Terminal() {
		return false
	}
	from, to := s.Rank(), next.Rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// Tier is the coarse priority bucket derived from a lead score.
type Tier string

const (
	TierHot    Tier = "Hot"
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// EmailCandidate is a single email address with its provenance.
// Verified addresses come from a source that confirmed deliverability;
// pattern-generated guesses are never verified.
type EmailCandidate struct {
	Address    string  `json:"address"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// Engagement holds prior positive engagement markers for a lead.
type Engagement struct {
	ConnectionAccepted bool `json:"connection_accepted,omitempty"`
	ResponseReceived   bool `json:"response_received,omitempty"`
}

// Lead is the canonical, deduplicated record of one business contact.
type Lead struct {
	IdentityKey string `json:"identity_key"`

	Name      string `json:"name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Title     string `json:"title,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
	City      string `json:"city,omitempty"`
	Industry  string `json:"industry,omitempty"`

	// CompanySize is a bucket label such as "51-200"; unrecognized source
	// values pass through verbatim.
	CompanySize string `json:"company_size,omitempty"`

	// Emails are ordered by descending confidence.
	Emails         []EmailCandidate `json:"emails,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	// WhatsApp is a derived guess, not a verified capability. See
	// enrich.WhatsAppCapable for the heuristic.
	WhatsApp       string `json:"whatsapp,omitempty"`
	CompanyWebsite string `json:"company_website,omitempty"`
	ProfileURL     string `json:"profile_url,omitempty"`

	Score float64 `json:"score"`
	Tier  Tier    `json:"tier"`

	Status           PipelineStatus `json:"status"`
	ProductsInterest string         `json:"products_interest,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	NextAction       string         `json:"next_action,omitempty"`
	Engagement       Engagement     `json:"engagement,omitempty"`

	Source    string    `json:"source"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BestEmail returns the highest-confidence email address, or "".
func (l *Lead) BestEmail() string {
	if len(l.Emails) == 0 {
		return ""
	}
	return l.Emails[0].Address
}

// HasVerifiedEmail reports whether any email candidate is verified.
func (l *Lead) HasVerifiedEmail() bool {
	for _, e := range l.Emails {
		if e.Verified {
			return true
		}
	}
	return false
}
