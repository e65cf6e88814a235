package model

// EmailStatus describes how a source qualified an email address.
type EmailStatus string

const (
	EmailVerified EmailStatus = "verified"
	EmailGuessed  EmailStatus = "guessed"
)

// RawEmail is an email address as reported by a source.
type RawEmail struct {
	Address string      `json:"address"`
	Status  EmailStatus `json:"status,omitempty"`
}

// RawCandidate is a candidate contact record as produced by a source adapter,
// before normalization. Field presence varies per source; the only hard
// requirement is an identity hint (ProfileURL, or Name plus Company).
type RawCandidate struct {
	Name           string            `json:"name,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	Title          string            `json:"title,omitempty"`
	Company        string            `json:"company,omitempty"`
	Location       string            `json:"location,omitempty"`
	City           string            `json:"city,omitempty"`
	Industry       string            `json:"industry,omitempty"`
	CompanySize    string            `json:"company_size,omitempty"`
	ProfileURL     string            `json:"profile_url,omitempty"`
	Email          *RawEmail         `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	CompanyWebsite string            `json:"company_website,omitempty"`
	Connections    string            `json:"connections,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	SourceTag      string            `json:"source_tag,omitempty"`
}
