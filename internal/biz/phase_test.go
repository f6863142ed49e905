package biz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	for _, p := range Phases() {
		got, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	for _, bad := range []string{"", "raw", "RAW_V1", "v4", " raw_v1"} {
		_, err := ParsePhase(bad)
		assert.True(t, errors.Is(err, ErrInvalidPhase), "phase %q", bad)
	}
}

func TestPhaseLayout(t *testing.T) {
	raw := PhaseRawV1.Layout()
	assert.Equal(t, StagingMovies, raw.Movies.Table)
	assert.Equal(t, StagingRatings, raw.Ratings.Table)
	assert.Equal(t, raw, PhaseImprovedV2.Layout())

	v3 := PhaseReformulatedV3.Layout()
	assert.Equal(t, StagingMoviesV3, v3.Movies.Table)
	assert.Equal(t, StagingRatingsV3, v3.Ratings.Table)
	assert.Equal(t, StagingUsers, v3.Users.Table)
	assert.Equal(t, []string{"uid", "mid", "score", "ts"}, v3.Ratings.Columns)

	assert.False(t, PhaseRawV1.NeedsConform())
	assert.False(t, PhaseImprovedV2.NeedsConform())
	assert.True(t, PhaseReformulatedV3.NeedsConform())
	assert.Equal(t, "stg.movies_v3", StagingMoviesV3.String())
}

func TestPhasesIsACopy(t *testing.T) {
	ps := Phases()
	ps[0] = "mutated"
	assert.Equal(t, PhaseRawV1, Phases()[0])
}
