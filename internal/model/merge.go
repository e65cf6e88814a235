package model

import (
	"sort"
	"strings"
)

// Merge folds attributes of incoming into existing and returns the result.
// The identity key, creation timestamp, and source tag of existing are kept.
// Scalar fields keep the existing value unless it is empty; a verified email
// is never displaced by an unverified guess; email candidates are unioned
// case-insensitively and re-sorted by confidence; pipeline status never moves
// backward.
func Merge(existing, incoming Lead) Lead {
	out := existing

	out.Name = firstNonEmpty(existing.Name, incoming.Name)
	out.FirstName = firstNonEmpty(existing.FirstName, incoming.FirstName)
	out.LastName = firstNonEmpty(existing.LastName, incoming.LastName)
	out.Title = firstNonEmpty(existing.Title, incoming.Title)
	out.Company = firstNonEmpty(existing.Company, incoming.Company)
	out.Location = firstNonEmpty(existing.Location, incoming.Location)
	out.City = firstNonEmpty(existing.City, incoming.City)
	out.Industry = firstNonEmpty(existing.Industry, incoming.Industry)
	out.CompanySize = firstNonEmpty(existing.CompanySize, incoming.CompanySize)
	out.Phone = firstNonEmpty(existing.Phone, incoming.Phone)
	out.WhatsApp = firstNonEmpty(existing.WhatsApp, incoming.WhatsApp)
	out.CompanyWebsite = firstNonEmpty(existing.CompanyWebsite, incoming.CompanyWebsite)
	out.ProfileURL = firstNonEmpty(existing.ProfileURL, incoming.ProfileURL)
	out.ProductsInterest = firstNonEmpty(existing.ProductsInterest, incoming.ProductsInterest)
	out.Notes = firstNonEmpty(existing.Notes, incoming.Notes)
	out.NextAction = firstNonEmpty(existing.NextAction, incoming.NextAction)

	out.Emails = mergeEmails(existing.Emails, incoming.Emails)

	out.Engagement.ConnectionAccepted = existing.Engagement.ConnectionAccepted || incoming.Engagement.ConnectionAccepted
	out.Engagement.ResponseReceived = existing.Engagement.ResponseReceived || incoming.Engagement.ResponseReceived

	// Status only moves forward.
	if existing.Status.CanTransition(incoming.Status) {
		out.Status = incoming.Status
	}

	// Score is recomputable; keep whichever reflects the richer record.
	if incoming.Score > existing.Score {
		out.Score = incoming.Score
		out.Tier = incoming.Tier
	}

	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		out.UpdatedAt = incoming.UpdatedAt
	}

	return out
}

// mergeEmails unions two candidate lists deduplicated by case-insensitive
// address. When both sides hold the same address, the one with the stronger
// claim (verified, then higher confidence) wins.
func mergeEmails(a, b []EmailCandidate) []EmailCandidate {
	byAddr := make(map[string]EmailCandidate, len(a)+len(b))
	order := make([]string, 0, len(a)+len(b))

	add := func(c EmailCandidate) {
		key := strings.ToLower(strings.TrimSpace(c.Address))
		if key == "" {
			return
		}
		prev, seen := byAddr[key]
		if !seen {
			byAddr[key] = c
			order = append(order, key)
			return
		}
		if stronger(c, prev) {
			byAddr[key] = c
		}
	}

	for _, c := range a {
		add(c)
	}
	for _, c := range b {
		add(c)
	}

	out := make([]EmailCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, byAddr[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Verified != out[j].Verified {
			return out[i].Verified
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func stronger(a, b EmailCandidate) bool {
	if a.Verified != b.Verified {
		return a.Verified
	}
	return a.Confidence > b.Confidence
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
