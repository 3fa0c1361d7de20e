// Package search finds points by label text.
//
// An [Index] searches a label set in place (string slice or blob+offsets,
// see soa.Labels) without copying it. A [Worker] runs an Index on its own
// goroutine behind a request/response message protocol, so searches over
// millions of labels never block the caller.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/soa"
)

// Result limits.
const (
	DefaultLimit = 100
	MaxLimit     = 10_000
)

// checkEvery is how many labels are scanned between context checks.
const checkEvery = 1 << 16

// Result is one matching label.
type Result struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Query is one search request. Matching is case-insensitive in both modes.
type Query struct {
	Text  string
	Regex bool
	// Limit caps the result count. Zero means DefaultLimit; values above
	// MaxLimit are clamped.
	Limit int
}

// Index searches a read-only label set.
type Index struct {
	labels soa.Labels
}

// NewIndex wraps labels. A nil set searches as empty.
func NewIndex(labels soa.Labels) *Index {
	if labels == nil {
		labels = soa.StringLabels(nil)
	}
	return &Index{labels: labels}
}

// Len returns the number of labels, including empty ones.
func (ix *Index) Len() int { return ix.labels.Len() }

// Search returns matches in label index order, at most q.Limit of them.
func (ix *Index) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := errors.ValidateQuery(q.Text, q.Regex); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	match, err := matcher(q)
	if err != nil {
		return nil, err
	}

	var out []Result
	n := ix.labels.Len()
	for i := 0; i < n && len(out) < limit; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return out, errors.Wrap(errors.ErrCodeTimeout, err, "search interrupted after %d labels", i)
			}
		}
		if !ix.labels.Has(i) {
			continue
		}
		label := ix.labels.Get(i)
		if match(label) {
			out = append(out, Result{Index: i, Label: label})
		}
	}
	return out, nil
}

func matcher(q Query) (func(string) bool, error) {
	if q.Regex {
		re, err := regexp.Compile("(?i)" + q.Text)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidQuery, err, "invalid regular expression %q", q.Text)
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(q.Text)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}, nil
}
