package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFillsGapsOnly(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	existing := Lead{
		IdentityKey: "linkedin.com/in/ahmed-hassan",
		Name:        "Ahmed Hassan",
		Title:       "IT Director",
		Company:     "RAK Ceramics",
		Source:      "profile_search",
		Status:      StatusNew,
		CreatedAt:   created,
	}
	incoming := Lead{
		IdentityKey: "linkedin.com/in/ahmed-hassan",
		Name:        "Ahmed M. Hassan", // weaker duplicate, must not overwrite
		Location:    "Ras Al Khaimah, UAE",
		CompanySize: "1000+",
		Phone:       "+971501234567",
		Source:      "web_contact",
	}

	out := Merge(existing, incoming)

	assert.Equal(t, "Ahmed Hassan", out.Name)
	assert.Equal(t, "IT Director", out.Title)
	assert.Equal(t, "Ras Al Khaimah, UAE", out.Location)
	assert.Equal(t, "1000+", out.CompanySize)
	assert.Equal(t, "+971501234567", out.Phone)
	assert.Equal(t, "profile_search", out.Source)
	assert.Equal(t, created, out.CreatedAt)
}

func TestMergeVerifiedEmailNeverDowngraded(t *testing.T) {
	existing := Lead{
		Emails: []EmailCandidate{
			{Address: "Ahmed.Hassan@rakceramics.com", Confidence: 0.95, Verified: true},
		},
	}
	incoming := Lead{
		Emails: []EmailCandidate{
			{Address: "ahmed.hassan@rakceramics.com", Confidence: 0.3}, // pattern guess
			{Address: "ahmed@rakceramics.com", Confidence: 0.25},
		},
	}

	out := Merge(existing, incoming)

	require.Len(t, out.Emails, 2)
	assert.True(t, out.Emails[0].Verified)
	assert.Equal(t, "Ahmed.Hassan@rakceramics.com", out.Emails[0].Address)
	assert.InDelta(t, 0.95, out.Emails[0].Confidence, 1e-9)
	assert.Equal(t, "ahmed@rakceramics.com", out.Emails[1].Address)
}

func TestMergeEmailUnionOrderedByConfidence(t *testing.T) {
	existing := Lead{
		Emails: []EmailCandidate{{Address: "a@x.ae", Confidence: 0.2}},
	}
	incoming := Lead{
		Emails: []EmailCandidate{
			{Address: "b@x.ae", Confidence: 0.8},
			{Address: "A@X.AE", Confidence: 0.5}, // same address, higher confidence
		},
	}

	out := Merge(existing, incoming)

	require.Len(t, out.Emails, 2)
	assert.Equal(t, "b@x.ae", out.Emails[0].Address)
	assert.InDelta(t, 0.5, out.Emails[1].Confidence, 1e-9)
}

func TestMergeStatusNeverRegresses(t *testing.T) {
	existing := Lead{Status: StatusQualified}
	incoming := Lead{Status: StatusNew}

	out := Merge(existing, incoming)
	assert.Equal(t, StatusQualified, out.Status)

	out = Merge(Lead{Status: StatusContacted}, Lead{Status: StatusResponded})
	assert.Equal(t, StatusResponded, out.Status)
}

func TestMergeEngagementIsSticky(t *testing.T) {
	existing := Lead{Engagement: Engagement{ConnectionAccepted: true}}
	incoming := Lead{Engagement: Engagement{ResponseReceived: true}}

	out := Merge(existing, incoming)
	assert.True(t, out.Engagement.ConnectionAccepted)
	assert.True(t, out.Engagement.ResponseReceived)
}
