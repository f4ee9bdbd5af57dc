package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Canonical(t *testing.T) {
	assert.Equal(t, "mc=0;mr=0", Options{}.Canonical())
	assert.Equal(t, "mc=0.65;mr=10", Options{MinConfidence: 0.65, MaxResults: 10}.Canonical())

	// Different knobs produce different keys.
	assert.NotEqual(t,
		Options{MinConfidence: 0.5}.Canonical(),
		Options{MinConfidence: 0.55}.Canonical(),
	)
	assert.NotEqual(t,
		Options{MaxResults: 5}.Canonical(),
		Options{MaxResults: 10}.Canonical(),
	)
}

func TestOptions_Canonical_IgnoresNonResultKnobs(t *testing.T) {
	base := Options{MinConfidence: 0.7, MaxResults: 5}
	refreshed := base
	refreshed.ForceRefresh = true
	boosted := base
	boosted.AffiliatedBoost = 1.2

	// Neither changes what the computed result looks like, so cached
	// entries must be shared.
	assert.Equal(t, base.Canonical(), refreshed.Canonical())
	assert.Equal(t, base.Canonical(), boosted.Canonical())
}
