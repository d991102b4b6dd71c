package relevance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

func fixedPolarity(p float64) Analyzer {
	return AnalyzerFunc(func(string) (float64, error) { return p, nil })
}

func TestFilterIsRelevantThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		polarity float64
		want     bool
	}{
		{name: "positive", polarity: 0.4, want: true},
		{name: "barely positive", polarity: 1e-9, want: true},
		{name: "max", polarity: 1, want: true},
		{name: "zero", polarity: 0, want: false},
		{name: "negative", polarity: -0.3, want: false},
		{name: "min", polarity: -1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewFilter(fixedPolarity(tt.polarity)).IsRelevant(lead.Post{Title: "x"})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFilterAnalyzesTitleAndBody(t *testing.T) {
	t.Parallel()

	var seen string
	f := NewFilter(AnalyzerFunc(func(text string) (float64, error) {
		seen = text
		return 0.1, nil
	}))
	_, err := f.IsRelevant(lead.Post{Title: "Need a website built", Body: "budget is flexible"})
	require.NoError(t, err)
	require.Equal(t, "Need a website built budget is flexible", seen)
}

func TestFilterPropagatesAnalyzerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := NewFilter(AnalyzerFunc(func(string) (float64, error) { return 0, boom }))
	ok, err := f.IsRelevant(lead.Post{Title: "x"})
	require.False(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestVaderPolarity(t *testing.T) {
	t.Parallel()

	v := NewVader()

	pos, err := v.Polarity("Looking for a great developer, happy to pay well for excellent work!")
	require.NoError(t, err)
	require.Greater(t, pos, 0.0)
	require.LessOrEqual(t, pos, 1.0)

	neg, err := v.Polarity("This is a terrible, awful scam. I hate it.")
	require.NoError(t, err)
	require.Less(t, neg, 0.0)
	require.GreaterOrEqual(t, neg, -1.0)
}

func TestVaderRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := NewVader().Polarity("bad \xff\xfe text")
	require.ErrorIs(t, err, ErrMalformedText)

	_, err = NewFilter(NewVader()).IsRelevant(lead.Post{Title: "\xff"})
	require.ErrorIs(t, err, ErrMalformedText)
}
