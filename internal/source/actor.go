package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/resilience"
	"github.com/vikabot-systems/leadscout/pkg/apify"
)

// Actor adapts a managed Apify scraping actor to the Source interface. One
// fetch is one actor run: start, wait for the run to finish, then drain the
// default dataset.
type Actor struct {
	client       apify.Client
	actorID      string
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewActor wraps an Apify client around a specific actor.
func NewActor(client apify.Client, actorID string, pollInterval, maxWait time.Duration) *Actor {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}
	return &Actor{
		client:       client,
		actorID:      actorID,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

func (a *Actor) Name() string {
	return NameActor
}

// actorInput is the run input contract shared with the actor.
type actorInput struct {
	SearchQuery string   `json:"searchQuery"`
	Location    string   `json:"location,omitempty"`
	MaxResults  int      `json:"maxResults"`
	SizeFilters []string `json:"companySizes,omitempty"`
}

// actorItem is one dataset row produced by the actor.
type actorItem struct {
	FullName    string `json:"fullName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Headline    string `json:"headline"`
	CompanyName string `json:"companyName"`
	Location    string `json:"location"`
	City        string `json:"city"`
	Industry    string `json:"industry"`
	CompanySize string `json:"companySize"`
	ProfileURL  string `json:"profileUrl"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Connections string `json:"connections"`
}

func (a *Actor) FetchCandidates(ctx context.Context, query Query, maxResults int) ([]model.RawCandidate, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	input := actorInput{
		SearchQuery: query.Title,
		Location:    query.Location,
		MaxResults:  maxResults,
		SizeFilters: query.CompanySizes,
	}
	if query.Keywords != "" {
		input.SearchQuery += " " + query.Keywords
	}

	run, err := a.client.RunAndWait(ctx, a.actorID, input, a.pollInterval, a.maxWait)
	if err != nil {
		return nil, a.classify(err)
	}

	var items []actorItem
	if err := a.client.GetDatasetItems(ctx, run.DefaultDatasetID, &items); err != nil {
		return nil, a.classify(err)
	}

	out := make([]model.RawCandidate, 0, len(items))
	for _, item := range items {
		if len(out) == maxResults {
			break
		}
		out = append(out, itemToCandidate(item))
	}
	return out, nil
}

func itemToCandidate(item actorItem) model.RawCandidate {
	c := model.RawCandidate{
		Name:           item.FullName,
		FirstName:      item.FirstName,
		LastName:       item.LastName,
		Title:          item.Headline,
		Company:        item.CompanyName,
		Location:       item.Location,
		City:           item.City,
		Industry:       item.Industry,
		CompanySize:    item.CompanySize,
		ProfileURL:     item.ProfileURL,
		Phone:          item.Phone,
		CompanyWebsite: item.Website,
		Connections:    item.Connections,
		SourceTag:      NameActor,
	}
	if item.Email != "" {
		c.Email = &model.RawEmail{Address: item.Email, Status: model.EmailGuessed}
	}
	return c
}

func (a *Actor) classify(err error) error {
	var apiErr *apify.APIError
	if eris.As(err, &apiErr) {
		return NewError(a.Name(), err, resilience.IsTransientHTTPStatus(apiErr.StatusCode))
	}
	return NewError(a.Name(), err, resilience.IsTransient(err))
}
