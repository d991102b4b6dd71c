package relevance

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/jonreiter/govader"
)

// Vader scores text with the VADER lexicon. The compound score is already
// normalized to [-1, 1].
type Vader struct {
	sia *govader.SentimentIntensityAnalyzer
}

// NewVader loads the VADER lexicon.
func NewVader() *Vader {
	return &Vader{sia: govader.NewSentimentIntensityAnalyzer()}
}

// Polarity returns the VADER compound score for text.
func (v *Vader) Polarity(text string) (float64, error) {
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("%w: invalid utf-8", ErrMalformedText)
	}
	compound := v.sia.PolarityScores(text).Compound
	if math.IsNaN(compound) {
		return 0, fmt.Errorf("%w: polarity is NaN", ErrMalformedText)
	}
	return math.Max(-1, math.Min(1, compound)), nil
}
