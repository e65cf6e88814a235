package source

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/resilience"
	"github.com/vikabot-systems/leadscout/pkg/apollo"
)

// ProfileSearch adapts the Apollo people-search API to the Source interface.
type ProfileSearch struct {
	client  apollo.Client
	perPage int
}

// NewProfileSearch wraps an Apollo client. perPage caps the page size;
// zero means the API default of 25.
func NewProfileSearch(client apollo.Client, perPage int) *ProfileSearch {
	if perPage <= 0 {
		perPage = 25
	}
	return &ProfileSearch{client: client, perPage: perPage}
}

func (s *ProfileSearch) Name() string {
	return NameProfileSearch
}

// FetchCandidates pages through search results until maxResults candidates
// are collected or the result set is exhausted.
func (s *ProfileSearch) FetchCandidates(ctx context.Context, query Query, maxResults int) ([]model.RawCandidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	var out []model.RawCandidate
	page := 1
	for len(out) < maxResults {
		req := apollo.SearchRequest{
			QKeywords: query.Keywords,
			Page:      page,
			PerPage:   s.perPage,
		}
		if query.Title != "" {
			req.PersonTitles = []string{query.Title}
		}
		if query.Location != "" {
			req.PersonLocations = []string{query.Location}
		}
		if len(query.CompanySizes) > 0 {
			req.OrganizationSizes = query.CompanySizes
		}

		resp, err := s.client.SearchPeople(ctx, req)
		if err != nil {
			return out, classifyAPIErr(s.Name(), err)
		}

		for _, p := range resp.People {
			out = append(out, personToCandidate(p))
			if len(out) == maxResults {
				break
			}
		}

		if len(resp.People) == 0 || page >= resp.Pagination.TotalPages {
			break
		}
		page++
	}
	return out, nil
}

func personToCandidate(p apollo.Person) model.RawCandidate {
	c := model.RawCandidate{
		Name:       p.Name,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Title:      p.Title,
		Location:   joinNonEmpty(p.City, p.Country),
		City:       p.City,
		ProfileURL: p.LinkedInURL,
		SourceTag:  NameProfileSearch,
	}
	if p.Email != "" {
		status := model.EmailGuessed
		if p.EmailStatus == "verified" {
			status = model.EmailVerified
		}
		c.Email = &model.RawEmail{Address: p.Email, Status: status}
	}
	if org := p.Organization; org != nil {
		c.Company = org.Name
		c.CompanyWebsite = org.WebsiteURL
		c.Industry = org.Industry
		c.Phone = org.Phone
		if org.EmployeeSize > 0 {
			c.CompanySize = strconv.Itoa(org.EmployeeSize)
		}
	}
	return c
}

// classifyAPIErr maps client failures to source errors. Rate limiting and
// server-side failures are retryable; bad requests and auth errors are not.
func classifyAPIErr(name string, err error) error {
	var apiErr *apollo.APIError
	if eris.As(err, &apiErr) {
		return NewError(name, err, resilience.IsTransientHTTPStatus(apiErr.StatusCode))
	}
	return NewError(name, err, resilience.IsTransient(err))
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + ", " + b
	}
}
