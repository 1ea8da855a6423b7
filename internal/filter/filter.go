// Package filter implements the marketplace search controls over a catalog.
//
// Every function here is pure: inputs are never modified and the same
// inputs always give the same result.
package filter

import (
	"sort"
	"strings"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// Apply returns the listings of catalog that match q, in catalog order.
//
// Text matches case-insensitively as a substring of the title or of any tag.
// Category and Stage match exactly unless set to the "All" sentinel (an empty
// value is treated the same way). Price must not exceed PriceCeiling.
func Apply(catalog []schema.Listing, q schema.Query) []schema.Listing {
	needle := strings.ToLower(q.Text)
	out := make([]schema.Listing, 0, len(catalog))
	for _, l := range catalog {
		if matchesText(l, needle) &&
			matchesCategory(l, q.Category) &&
			matchesStage(l, q.Stage) &&
			l.Price <= q.PriceCeiling {
			out = append(out, l)
		}
	}
	return out
}

func matchesText(l schema.Listing, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(l.Title), needle) {
		return true
	}
	for _, tag := range l.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func matchesCategory(l schema.Listing, c schema.Category) bool {
	return c == "" || c == schema.CategoryAll || l.Category == c
}

func matchesStage(l schema.Listing, s schema.FailureStage) bool {
	return s == "" || s == schema.StageAll || l.FailureStage == s
}

// Featured returns the featured listings of catalog, in catalog order.
func Featured(catalog []schema.Listing) []schema.Listing {
	out := make([]schema.Listing, 0)
	for _, l := range catalog {
		if l.Featured {
			out = append(out, l)
		}
	}
	return out
}

// SortKey selects an ordering for Sort.
type SortKey string

const (
	SortNone       SortKey = ""
	SortPriceAsc   SortKey = "price_asc"
	SortPriceDesc  SortKey = "price_desc"
	SortDownloads  SortKey = "downloads"
	SortConfidence SortKey = "confidence"
)

// ParseSortKey validates a sort key coming from a request.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortPriceAsc, SortPriceDesc, SortDownloads, SortConfidence:
		return k, true
	}
	return SortNone, false
}

// Sort returns a sorted copy of listings. Ties keep their input order.
// SortNone returns the copy unchanged.
func Sort(listings []schema.Listing, key SortKey) []schema.Listing {
	out := append(make([]schema.Listing, 0, len(listings)), listings...)

	var less func(a, b schema.Listing) bool
	switch key {
	case SortPriceAsc:
		less = func(a, b schema.Listing) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b schema.Listing) bool { return a.Price > b.Price }
	case SortDownloads:
		less = func(a, b schema.Listing) bool { return a.Downloads > b.Downloads }
	case SortConfidence:
		less = func(a, b schema.Listing) bool { return a.ConfidenceScore > b.ConfidenceScore }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// FacetSet lists the selectable values of the category and stage controls.
type FacetSet struct {
	Categories []schema.Category     `json:"categories"`
	Stages     []schema.FailureStage `json:"stages"`
}

// Facets returns the control values with the "All" sentinel first.
func Facets() FacetSet {
	fs := FacetSet{
		Categories: append([]schema.Category{schema.CategoryAll}, schema.Categories...),
		Stages:     append([]schema.FailureStage{schema.StageAll}, schema.Stages...),
	}
	return fs
}
