package source

import (
	"context"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/resilience"
)

// Downloader is the fetch capability WebContact needs; fetcher.HTTPFetcher
// satisfies it.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// WebContact discovers public profiles through a search engine and extracts
// whatever contact details the public pages expose. Best effort by nature:
// a page that fails to parse is skipped, not fatal.
type WebContact struct {
	fetch   Downloader
	baseURL string
}

// NewWebContact builds the scraping source. baseURL is the search engine
// root, e.g. https://www.google.com.
func NewWebContact(fetch Downloader, baseURL string) *WebContact {
	return &WebContact{fetch: fetch, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *WebContact) Name() string {
	return NameWebContact
}

var (
	profileURLRe = regexp.MustCompile(`https://(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9\-_%]+`)
	ogTitleRe    = regexp.MustCompile(`<meta[^>]+property="og:title"[^>]+content="([^"]+)"`)
	ogDescRe     = regexp.MustCompile(`<meta[^>]+property="og:description"[^>]+content="([^"]+)"`)
	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe      = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)
)

// emailJunk filters the addresses that appear in page assets and templates
// rather than belonging to a person.
var emailJunk = []string{
	"example", "sentry", "wixpress", "@2x", "your@", "email@", "name@",
	"domain", "user@", ".png", ".jpg", ".gif", ".webp", "noreply", "no-reply",
}

func (s *WebContact) FetchCandidates(ctx context.Context, query Query, maxResults int) ([]model.RawCandidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	profileURLs, err := s.searchProfiles(ctx, query)
	if err != nil {
		return nil, err
	}

	var out []model.RawCandidate
	for _, profileURL := range profileURLs {
		if len(out) == maxResults {
			break
		}
		cand, err := s.fetchProfile(ctx, profileURL)
		if err != nil {
			zap.L().Debug("web contact: skipping profile",
				zap.String("url", profileURL),
				zap.Error(err),
			)
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// searchProfiles runs a site-scoped search and returns the profile URLs in
// result order, deduplicated.
func (s *WebContact) searchProfiles(ctx context.Context, query Query) ([]string, error) {
	terms := `site:linkedin.com/in "` + query.Title + `"`
	if query.Location != "" {
		terms += ` "` + query.Location + `"`
	}
	if query.Keywords != "" {
		terms += ` ` + query.Keywords
	}
	searchURL := s.baseURL + "/search?q=" + url.QueryEscape(terms)

	body, err := s.fetch.Download(ctx, searchURL)
	if err != nil {
		return nil, NewError(s.Name(), eris.Wrap(err, "search request"), resilience.IsTransient(err))
	}
	defer body.Close()

	html, err := io.ReadAll(body)
	if err != nil {
		return nil, NewError(s.Name(), eris.Wrap(err, "read search page"), true)
	}

	seen := map[string]bool{}
	var urls []string
	for _, m := range profileURLRe.FindAllString(string(html), -1) {
		if !seen[m] {
			seen[m] = true
			urls = append(urls, m)
		}
	}
	return urls, nil
}

// fetchProfile downloads a public profile page and builds a candidate from
// its Open Graph metadata.
func (s *WebContact) fetchProfile(ctx context.Context, profileURL string) (model.RawCandidate, error) {
	body, err := s.fetch.Download(ctx, profileURL)
	if err != nil {
		return model.RawCandidate{}, eris.Wrap(err, "fetch profile")
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return model.RawCandidate{}, eris.Wrap(err, "read profile")
	}
	html := string(data)

	name, title, company := parseProfileTitle(metaContent(ogTitleRe, html))
	if name == "" {
		return model.RawCandidate{}, eris.Errorf("no usable metadata on %s", profileURL)
	}

	cand := model.RawCandidate{
		Name:       name,
		Title:      title,
		Company:    company,
		Location:   locationFromDescription(metaContent(ogDescRe, html)),
		ProfileURL: profileURL,
		SourceTag:  NameWebContact,
	}

	emails, phones := ExtractContacts(html)
	if len(emails) > 0 {
		cand.Email = &model.RawEmail{Address: emails[0], Status: model.EmailGuessed}
	}
	if len(phones) > 0 {
		cand.Phone = phones[0]
	}
	return cand, nil
}

// parseProfileTitle splits an Open Graph title like
// "Ahmed Hassan - IT Director - RAK Ceramics | LinkedIn" into its parts.
// The two-part "Name - Title at Company" shape is handled too.
func parseProfileTitle(og string) (name, title, company string) {
	og = strings.TrimSpace(strings.TrimSuffix(og, "| LinkedIn"))
	og = strings.TrimSpace(og)
	if og == "" {
		return "", "", ""
	}

	parts := strings.Split(og, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	name = parts[0]
	if len(parts) >= 3 {
		return name, parts[1], parts[2]
	}
	if len(parts) == 2 {
		if at := strings.SplitN(parts[1], " at ", 2); len(at) == 2 {
			return name, strings.TrimSpace(at[0]), strings.TrimSpace(at[1])
		}
		return name, parts[1], ""
	}
	return name, "", ""
}

func metaContent(re *regexp.Regexp, html string) string {
	if m := re.FindStringSubmatch(html); len(m) == 2 {
		return m[1]
	}
	return ""
}

// locationFromDescription pulls the leading location segment out of a
// profile description ("Dubai, United Arab Emirates · 500+ connections").
func locationFromDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ""
	}
	if idx := strings.Index(desc, "·"); idx > 0 {
		return strings.TrimSpace(desc[:idx])
	}
	return ""
}

// ExtractContacts pulls plausible emails and phone numbers out of page HTML,
// dropping the asset and template addresses that always pollute the raw
// matches.
func ExtractContacts(html string) (emails, phones []string) {
	seenEmail := map[string]bool{}
	for _, m := range emailRe.FindAllString(html, -1) {
		lower := strings.ToLower(m)
		if junkEmail(lower) || seenEmail[lower] {
			continue
		}
		seenEmail[lower] = true
		emails = append(emails, lower)
	}

	seenPhone := map[string]bool{}
	for _, m := range phoneRe.FindAllString(html, -1) {
		digits := countDigits(m)
		if digits < 9 || digits > 15 {
			continue
		}
		norm := strings.Join(strings.Fields(m), " ")
		if seenPhone[norm] {
			continue
		}
		seenPhone[norm] = true
		phones = append(phones, norm)
	}
	return emails, phones
}

func junkEmail(addr string) bool {
	for _, junk := range emailJunk {
		if strings.Contains(addr, junk) {
			return true
		}
	}
	return false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
