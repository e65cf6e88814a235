// Package normalize turns raw source candidates into canonical leads with
// stable identity keys.
package normalize

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// ErrRejected marks a candidate that carries too little identity to dedupe
// against the store. Rejected candidates are counted, never persisted.
var ErrRejected = eris.New("normalize: candidate rejected")

const defaultNextAction = "Send LinkedIn connection request"

// Normalizer converts raw candidates into leads. DefaultProducts seeds the
// products-interest field on every new lead.
type Normalizer struct {
	DefaultProducts string
}

// New returns a normalizer with the given default products-interest value.
func New(defaultProducts string) *Normalizer {
	return &Normalizer{DefaultProducts: defaultProducts}
}

// Normalize builds a canonical lead from a raw candidate. It returns
// ErrRejected when neither a profile URL nor a name+company pair is present.
func (n *Normalizer) Normalize(raw model.RawCandidate, now time.Time) (model.Lead, error) {
	name := cleanSpace(raw.Name)
	company := cleanSpace(raw.Company)
	profileURL := canonicalProfileURL(raw.ProfileURL)

	key := IdentityKey(profileURL, name, company)
	if key == "" {
		return model.Lead{}, eris.Wrap(ErrRejected, "no profile URL and no name+company")
	}

	first, last := splitName(name, cleanSpace(raw.FirstName), cleanSpace(raw.LastName))

	lead := model.Lead{
		IdentityKey:      key,
		Name:             name,
		FirstName:        first,
		LastName:         last,
		Title:            cleanSpace(raw.Title),
		Company:          company,
		Location:         cleanSpace(raw.Location),
		City:             cleanSpace(raw.City),
		Industry:         cleanSpace(raw.Industry),
		CompanySize:      SizeBucket(raw.CompanySize),
		Phone:            cleanSpace(raw.Phone),
		CompanyWebsite:   cleanSpace(raw.CompanyWebsite),
		ProfileURL:       profileURL,
		Status:           model.StatusNew,
		ProductsInterest: n.DefaultProducts,
		NextAction:       defaultNextAction,
		Notes:            noteFor(raw),
		Source:           raw.SourceTag,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if raw.Email != nil && raw.Email.Address != "" {
		addr := strings.ToLower(cleanSpace(raw.Email.Address))
		cand := model.EmailCandidate{Address: addr, Confidence: 0.5}
		if raw.Email.Status == model.EmailVerified {
			cand.Verified = true
			cand.Confidence = 1.0
		}
		lead.Emails = []model.EmailCandidate{cand}
	}

	return lead, nil
}

// IdentityKey derives the dedup key: the canonical profile URL when present,
// otherwise a case-folded name|company composite.
func IdentityKey(profileURL, name, company string) string {
	if profileURL != "" {
		return profileURL
	}
	if name == "" || company == "" {
		return ""
	}
	return fold(name) + "|" + fold(company)
}

// canonicalProfileURL lowercases host and path, strips query parameters,
// fragments, and trailing slashes so the same profile always keys the same.
func canonicalProfileURL(raw string) string {
	raw = cleanSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	if path == "" {
		return ""
	}
	return "https://" + host + path
}

// SizeBucket maps free-form employee counts and ranges onto the canonical
// company-size buckets. Labels it cannot read pass through verbatim so no
// source data is lost.
func SizeBucket(raw string) string {
	cleaned := cleanSpace(raw)
	s := strings.ToLower(cleaned)
	s = strings.TrimSuffix(s, " employees")
	if s == "" {
		return ""
	}

	switch s {
	case "1-10", "11-50", "51-200", "201-500", "501-1000", "1000+":
		return s
	}
	if strings.HasSuffix(s, "+") {
		if v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSuffix(s, "+"), ",", "")); err == nil {
			return bucketFor(v)
		}
		return cleaned
	}
	if _, hi, ok := splitRange(s); ok {
		return bucketFor(hi)
	}
	if v, err := strconv.Atoi(strings.ReplaceAll(s, ",", "")); err == nil {
		return bucketFor(v)
	}
	return cleaned
}

func bucketFor(n int) string {
	switch {
	case n <= 0:
		return ""
	case n <= 10:
		return "1-10"
	case n <= 50:
		return "11-50"
	case n <= 200:
		return "51-200"
	case n <= 500:
		return "201-500"
	case n <= 1000:
		return "501-1000"
	default:
		return "1000+"
	}
}

func splitRange(s string) (int, int, bool) {
	for _, sep := range []string{"-", " to ", "–"} {
		parts := strings.SplitN(s, sep, 2)
		if len(parts) != 2 {
			continue
		}
		lo, err1 := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(parts[0], ",", "")))
		hi, err2 := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(parts[1], ",", "")))
		if err1 == nil && err2 == nil {
			return lo, hi, true
		}
	}
	return 0, 0, false
}

func splitName(full, first, last string) (string, string) {
	if first != "" || last != "" {
		return first, last
	}
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[len(fields)-1]
	}
}

func noteFor(raw model.RawCandidate) string {
	if raw.Connections != "" {
		return "Connections: " + raw.Connections
	}
	return ""
}

func cleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	folder = cases.Fold()
	// deaccent decomposes, drops combining marks and recomposes, so "José"
	// and "Jose" fold to the same identity key.
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
)

func fold(s string) string {
	s = cleanSpace(s)
	if stripped, _, err := transform.String(deaccent, s); err == nil {
		s = stripped
	}
	return folder.String(s)
}
