package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClientDefaults(t *testing.T) {
	var _ Client = (*notionClient)(nil)

	c := NewClient("test-token").(*notionClient)
	require.NotNil(t, c.inner)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(3), c.limiter.Limit())
}

func TestWithRateLimit(t *testing.T) {
	t.Run("overrides default", func(t *testing.T) {
		c := NewClient("test-token", WithRateLimit(10)).(*notionClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, rate.Limit(10), c.limiter.Limit())
		assert.Equal(t, 10, c.limiter.Burst())
	})

	t.Run("zero rate disables throttling", func(t *testing.T) {
		c := NewClient("test-token", WithRateLimit(0)).(*notionClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("fractional rate gets burst of 1", func(t *testing.T) {
		c := NewClient("test-token", WithRateLimit(0.5)).(*notionClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, 1, c.limiter.Burst())
	})
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	// Zero burst so Wait always blocks.
	c := &notionClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.wait(ctx))
}

func TestQueryDatabase_RateLimitCancelled(t *testing.T) {
	c := &notionClient{
		inner:   notionapi.NewClient("test-token"),
		limiter: rate.NewLimiter(rate.Every(time.Hour), 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter wait fails before any request is issued.
	_, err := c.QueryDatabase(ctx, "db-123", &notionapi.DatabaseQueryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")

	_, err = c.CreatePage(ctx, &notionapi.PageCreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
}
