package source

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikabot-systems/leadscout/pkg/apify"
)

type fakeApify struct {
	runErr     error
	datasetErr error
	items      []actorItem
	lastInput  actorInput
}

func (f *fakeApify) StartRun(_ context.Context, _ string, _ any) (*apify.Run, error) {
	panic("not used")
}

func (f *fakeApify) GetRun(_ context.Context, _ string) (*apify.Run, error) {
	panic("not used")
}

func (f *fakeApify) RunAndWait(_ context.Context, _ string, input any, _, _ time.Duration) (*apify.Run, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.lastInput = input.(actorInput)
	return &apify.Run{ID: "run-1", Status: apify.RunStatusSucceeded, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeApify) GetDatasetItems(_ context.Context, datasetID string, out any) error {
	if f.datasetErr != nil {
		return f.datasetErr
	}
	*out.(*[]actorItem) = f.items
	return nil
}

func TestActorFetchCandidates(t *testing.T) {
	fake := &fakeApify{
		items: []actorItem{
			{
				FullName:    "Ahmed Hassan",
				Headline:    "IT Director",
				CompanyName: "RAK Ceramics",
				Location:    "Ras Al Khaimah, United Arab Emirates",
				CompanySize: "1001-5000",
				ProfileURL:  "https://linkedin.com/in/ahmed-hassan",
				Email:       "ahmed@rakceramics.com",
				Connections: "500+",
			},
			{FullName: "Sara Khalid", Headline: "CTO", CompanyName: "Mashreq"},
		},
	}

	a := NewActor(fake, "vendor~profile-scraper", time.Millisecond, time.Second)
	got, err := a.FetchCandidates(context.Background(), Query{Title: "IT Director", Location: "Sharjah", Keywords: "UAE"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	c := got[0]
	assert.Equal(t, "Ahmed Hassan", c.Name)
	assert.Equal(t, "IT Director", c.Title)
	assert.Equal(t, "RAK Ceramics", c.Company)
	assert.Equal(t, "500+", c.Connections)
	assert.Equal(t, NameActor, c.SourceTag)
	require.NotNil(t, c.Email)

	assert.Equal(t, "IT Director UAE", fake.lastInput.SearchQuery)
	assert.Equal(t, "Sharjah", fake.lastInput.Location)
	assert.Equal(t, 10, fake.lastInput.MaxResults)
}

func TestActorCapsResults(t *testing.T) {
	fake := &fakeApify{
		items: []actorItem{{FullName: "a"}, {FullName: "b"}, {FullName: "c"}},
	}
	got, err := NewActor(fake, "act", 0, 0).FetchCandidates(context.Background(), Query{Title: "CTO"}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestActorErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &apify.APIError{StatusCode: 502}, true},
		{"unauthorized", &apify.APIError{StatusCode: 401}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeApify{runErr: tt.err}
			_, err := NewActor(fake, "act", 0, 0).FetchCandidates(context.Background(), Query{Title: "CTO"}, 5)
			require.Error(t, err)

			var srcErr *Error
			require.True(t, eris.As(err, &srcErr))
			assert.Equal(t, NameActor, srcErr.Source)
			assert.Equal(t, tt.retryable, srcErr.Retryable)
		})
	}
}

func TestActorDatasetError(t *testing.T) {
	fake := &fakeApify{datasetErr: eris.New("boom")}
	_, err := NewActor(fake, "act", 0, 0).FetchCandidates(context.Background(), Query{Title: "CTO"}, 5)
	require.Error(t, err)

	var srcErr *Error
	require.True(t, eris.As(err, &srcErr))
	assert.False(t, srcErr.Retryable)
}
