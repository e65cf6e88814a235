// Package enrich fills contact gaps on leads: guessed email patterns from
// the person's name and company domain, and a WhatsApp channel inferred from
// UAE mobile numbers.
package enrich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vikabot-systems/leadscout/internal/model"
)

const guessedConfidence = 0.3

// knownDomains maps well-known UAE organizations to their real mail domains.
// The fallback for everything else is <first company word>.ae, which is only
// a guess and is scored accordingly.
var knownDomains = map[string]string{
	"emirates":     "emirates.com",
	"emirates nbd": "emiratesnbd.com",
	"etisalat":     "etisalat.ae",
	"du":           "du.ae",
	"adnoc":        "adnoc.ae",
	"enoc":         "enoc.com",
	"dewa":         "dewa.gov.ae",
	"sewa":         "sewa.gov.ae",
	"rakbank":      "rakbank.ae",
	"mashreq":      "mashreq.com",
}

// Enricher adds guessed contact channels to leads. It only ever adds
// information; existing verified data is never replaced or removed.
type Enricher struct{}

// New returns a contact enricher.
func New() *Enricher {
	return &Enricher{}
}

// Enrich augments the lead in place. Guessed emails are appended after any
// existing candidates, and WhatsApp is derived from the phone number when
// the number looks like a UAE mobile.
func (e *Enricher) Enrich(lead *model.Lead) {
	if !lead.HasVerifiedEmail() {
		lead.Emails = appendNew(lead.Emails, e.EmailGuesses(*lead))
	}
	if lead.WhatsApp == "" {
		lead.WhatsApp = WhatsAppFromPhone(lead.Phone)
	}
	lead.Status = advanceStatus(lead.Status)
}

// EmailGuesses builds candidate addresses from the lead's name and company
// domain. An empty slice means the lead had no usable name or company.
func (e *Enricher) EmailGuesses(lead model.Lead) []model.EmailCandidate {
	first := sanitizeNamePart(lead.FirstName)
	last := sanitizeNamePart(lead.LastName)
	domain := CompanyDomain(lead.Company, lead.CompanyWebsite)
	if first == "" || domain == "" {
		return nil
	}

	locals := []string{first}
	if last != "" {
		locals = []string{
			first + "." + last,
			first,
			first + last,
			first[:1] + last,
			first + "_" + last,
			last + "." + first,
		}
	}

	out := make([]model.EmailCandidate, 0, len(locals))
	seen := map[string]bool{}
	for _, local := range locals {
		addr := local + "@" + domain
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, model.EmailCandidate{Address: addr, Confidence: guessedConfidence})
	}
	return out
}

// CompanyDomain resolves the mail domain for a company: the website host
// when one is known, a known-organization override next, then the
// first-word-dot-ae guess.
func CompanyDomain(company, website string) string {
	if host := hostOf(website); host != "" {
		return host
	}

	c := strings.ToLower(strings.Join(strings.Fields(company), " "))
	if c == "" {
		return ""
	}
	if domain, ok := knownDomains[c]; ok {
		return domain
	}
	for name, domain := range knownDomains {
		if strings.Contains(" "+c+" ", " "+name+" ") {
			return domain
		}
	}

	word := sanitizeNamePart(strings.Fields(c)[0])
	if word == "" {
		return ""
	}
	return word + ".ae"
}

func hostOf(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	return strings.TrimPrefix(host, "www.")
}

var nonDigit = regexp.MustCompile(`\D`)

// WhatsAppFromPhone returns a normalized +9715xxxxxxxx number when the phone
// looks like a UAE mobile, else "". UAE mobiles start with operator code 5x;
// landlines (4x, 6x, 7x, 2x) never carry WhatsApp here. This is a heuristic
// on the number shape, not a registration check.
func WhatsAppFromPhone(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")

	var national string
	switch {
	case strings.HasPrefix(digits, "00971"):
		national = digits[5:]
	case strings.HasPrefix(digits, "971"):
		national = digits[3:]
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		national = digits[1:]
	default:
		return ""
	}

	if len(national) != 9 || national[0] != '5' {
		return ""
	}
	return "+971" + national
}

func sanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func appendNew(existing, guesses []model.EmailCandidate) []model.EmailCandidate {
	seen := map[string]bool{}
	for _, c := range existing {
		seen[strings.ToLower(c.Address)] = true
	}
	for _, g := range guesses {
		if !seen[strings.ToLower(g.Address)] {
			existing = append(existing, g)
			seen[strings.ToLower(g.Address)] = true
		}
	}
	return existing
}

func advanceStatus(s model.PipelineStatus) model.PipelineStatus {
	if s == model.StatusNew {
		return model.StatusEnriched
	}
	return s
}
