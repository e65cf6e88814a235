// Package apollo is a minimal client for the Apollo.io people search API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the Apollo v1 API.
const defaultBaseURL = "https://api.apollo.io/v1"

// Client defines the Apollo API operations used by the collector.
type Client interface {
	SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the body for POST /mixed_people/search.
type SearchRequest struct {
	PersonTitles      []string `json:"person_titles,omitempty"`
	PersonLocations   []string `json:"person_locations,omitempty"`
	QKeywords         string   `json:"q_keywords,omitempty"`
	OrganizationSizes []string `json:"organization_num_employees_ranges,omitempty"`
	Page              int      `json:"page,omitempty"`
	PerPage           int      `json:"per_page,omitempty"`
}

// SearchResponse is the response from POST /mixed_people/search.
type SearchResponse struct {
	People     []Person   `json:"people"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the cursor state of a search response.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_entries"`
}

// Person is one search hit.
type Person struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	LinkedInURL  string        `json:"linkedin_url"`
	Email        string        `json:"email"`
	EmailStatus  string        `json:"email_status"`
	City         string        `json:"city"`
	Country      string        `json:"country"`
	Organization *Organization `json:"organization,omitempty"`
}

// Organization is the company block attached to a person.
type Organization struct {
	Name         string `json:"name"`
	WebsiteURL   string `json:"website_url"`
	Industry     string `json:"industry"`
	EmployeeSize int    `json:"estimated_num_employees"`
	Phone        string `json:"phone"`
}

// APIError is returned when Apollo responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apollo: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Apollo client. The default limiter stays under
// Apollo's free-tier request budget.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/mixed_people/search", req, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: search people")
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
