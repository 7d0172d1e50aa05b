package dedupe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/tca/internal/types"
)

func TestExactURLStrategy(t *testing.T) {
	s := ExactURLStrategy{}

	dup, err := s.Evaluate(
		types.Item{CanonicalURLHash: "abc"},
		types.Item{CanonicalURLHash: "abc"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeDuplicate, dup.Status)
	assert.Equal(t, ReasonExactURLMatch, dup.Reason)

	distinct, err := s.Evaluate(
		types.Item{CanonicalURLHash: "abc"},
		types.Item{CanonicalURLHash: "xyz"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeDistinct, distinct.Status)

	abstain, err := s.Evaluate(types.Item{}, types.Item{CanonicalURLHash: "abc"})
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeAbstain, abstain.Status)
	assert.Equal(t, ReasonExactURLMissing, abstain.Reason)
}

func TestContentHashStrategy_EquivalentContentIsDuplicate(t *testing.T) {
	s := ContentHashStrategy{}

	result, err := s.Evaluate(
		types.Item{Title: "ＦＯＯ BAR", Body: "Read https://Example.com/a/b?utm_source=telegram&x=1 now"},
		types.Item{Title: "foo bar", Body: "Read https://example.com/a/b?x=1 now"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeDuplicate, result.Status)
	assert.Equal(t, ReasonContentHashMatch, result.Reason)
}

func TestContentHashStrategy_DifferentContentIsNotDuplicate(t *testing.T) {
	s := ContentHashStrategy{}
	result, err := s.Evaluate(
		types.Item{Title: "Alpha", Body: "Body one"},
		types.Item{Title: "Alpha", Body: "Body two"},
	)
	assert.NoError(t, err)
	assert.NotEqual(t, types.OutcomeDuplicate, result.Status)
	assert.Equal(t, ReasonContentHashMiss, result.Reason)
}

func TestTitleSimilarityStrategy(t *testing.T) {
	s := TitleSimilarityStrategy{Threshold: 0.92}

	dup, err := s.Evaluate(
		types.Item{Title: "Breaking major earthquake update in city center now"},
		types.Item{Title: "city center now update breaking major earthquake in"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeDuplicate, dup.Status)

	distinct, err := s.Evaluate(
		types.Item{Title: "Local weather forecast predicts rain this afternoon"},
		types.Item{Title: "Stock market closes higher after tech rally"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeDistinct, distinct.Status)

	abstain, err := s.Evaluate(
		types.Item{Title: "quick note"},
		types.Item{Title: "quick note update"},
	)
	assert.NoError(t, err)
	assert.Equal(t, types.OutcomeAbstain, abstain.Status)
	assert.Equal(t, ReasonTitleSimShort, abstain.Reason)
}

func TestValidate_RejectsUnknownStatus(t *testing.T) {
	err := Validate("bogus", Result{Status: "UNKNOWN", Reason: "x"})
	assert.Error(t, err)
}

func TestValidate_RejectsNonFiniteScore(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		bad := bad
		err := Validate("s", Result{Status: types.OutcomeDuplicate, Reason: "x", Score: &bad})
		assert.Error(t, err)
	}
}
