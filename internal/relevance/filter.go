// Package relevance decides whether a candidate post reads as a genuine,
// favorable hiring request by scoring the sentiment polarity of its text.
package relevance

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

// ErrMalformedText is returned when text cannot be analyzed.
var ErrMalformedText = errors.New("malformed text")

// Analyzer computes a sentiment polarity in [-1, 1] for free text.
type Analyzer interface {
	Polarity(text string) (float64, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(text string) (float64, error)

// Polarity calls f(text).
func (f AnalyzerFunc) Polarity(text string) (float64, error) {
	return f(text)
}

// Filter accepts posts whose combined title and body have positive polarity.
type Filter struct {
	analyzer Analyzer
}

// NewFilter returns a Filter backed by analyzer. A nil analyzer selects VADER.
func NewFilter(analyzer Analyzer) *Filter {
	if analyzer == nil {
		analyzer = NewVader()
	}
	return &Filter{analyzer: analyzer}
}

// IsRelevant reports whether polarity is strictly greater than zero.
func (f *Filter) IsRelevant(post lead.Post) (bool, error) {
	polarity, err := f.analyzer.Polarity(post.Text())
	if err != nil {
		return false, fmt.Errorf("score sentiment: %w", err)
	}
	return polarity > 0, nil
}
