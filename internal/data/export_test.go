package data

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func i32p(v int32) *int32   { return &v }

func testSnapshot() *biz.Snapshot {
	ts := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	return &biz.Snapshot{
		Movies: []*biz.WarehouseMovie{
			{ID: 1, Title: strp("Heat"), Year: i32p(1995), Genre: strp("Crime"), IMDbID: "tt0113277"},
			{ID: 2, Title: strp("Up, Up"), Genre: nil, IMDbID: "tt"},
		},
		Users: []*biz.WarehouseUser{
			{ID: 1, AgeRange: "25-34", Country: strp("BR")},
			{ID: 2, AgeRange: biz.UnknownAgeRange},
		},
		Ratings: []*biz.WarehouseRating{
			{ID: 1, UserID: i32p(1), MovieID: i32p(1), Rating: 4.5, CreatedAt: &ts},
			{ID: 2, UserID: i32p(2), MovieID: i32p(1), Rating: 0.5},
		},
		TopByGenre: []*biz.GenreTopMovie{
			{Genre: strp("Crime"), MovieID: 1, Title: strp("Heat"), AvgRating: 2.5, NRatings: 2},
		},
		AgeAverages: []*biz.AgeRangeAverage{
			{AgeRange: "25-34", AvgRating: 4.5, N: 1},
			{AgeRange: biz.UnknownAgeRange, AvgRating: 0.5, N: 1},
		},
		Countries: []*biz.CountryCount{
			{Country: strp("BR"), N: 1},
			{Country: nil, N: 1},
		},
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportWriterWritesAllFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "normalized_v1")
	w := NewExportWriter(&conf.Lake{ExportDir: dir}, log.NewStdLogger(io.Discard))

	summary, err := w.Write(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, dir, summary.Dir)
	assert.Equal(t, biz.ExportCounts{DWMovies: 2, DWUsers: 2, DWRatings: 2, MartTop10: 1, MartAge: 2, MartCountry: 2}, summary.Rows)

	assert.Equal(t, [][]string{
		{"id", "title", "year", "genre", "imdb_id"},
		{"1", "Heat", "1995", "Crime", "tt0113277"},
		{"2", "Up, Up", "", "", "tt"},
	}, readAll(t, filepath.Join(dir, "dw_movies.csv")))
	assert.Equal(t, [][]string{
		{"id", "user_id", "movie_id", "rating", "created_at"},
		{"1", "1", "1", "4.5", "2023-01-02T03:04:05Z"},
		{"2", "2", "1", "0.5", ""},
	}, readAll(t, filepath.Join(dir, "dw_ratings.csv")))
	assert.Equal(t, [][]string{
		{"genre", "movie_id", "title", "avg_rating", "n_ratings"},
		{"Crime", "1", "Heat", "2.5", "2"},
	}, readAll(t, filepath.Join(dir, "marts", "top10_by_genre.csv")))
	assert.Equal(t, [][]string{
		{"country", "n"},
		{"BR", "1"},
		{"", "1"},
	}, readAll(t, filepath.Join(dir, "marts", "ratings_by_country.csv")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temporary file left behind: %s", e.Name())
	}
}

func TestExportWriterIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewExportWriter(&conf.Lake{ExportDir: dir}, log.NewStdLogger(io.Discard))
	ctx := context.Background()

	_, err := w.Write(ctx, testSnapshot())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "dw_users.csv"))
	require.NoError(t, err)

	_, err = w.Write(ctx, testSnapshot())
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "dw_users.csv"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestExportRoundTripsThroughLakeReader(t *testing.T) {
	dir := t.TempDir()
	snap := testSnapshot()
	_, err := NewExportWriter(&conf.Lake{ExportDir: dir}, log.NewStdLogger(io.Discard)).Write(context.Background(), snap)
	require.NoError(t, err)

	// The exported files carry a superset of the canonical columns.
	phaseDir := filepath.Join(dir, "lake", string(biz.PhaseRawV1))
	require.NoError(t, os.MkdirAll(phaseDir, 0o755))
	for src, dst := range map[string]string{
		"dw_movies.csv":  "movies.csv",
		"dw_users.csv":   "users.csv",
		"dw_ratings.csv": "ratings.csv",
	} {
		b, err := os.ReadFile(filepath.Join(dir, src))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(phaseDir, dst), b, 0o644))
	}

	batch, err := newTestLake(filepath.Join(dir, "lake")).ReadBatch(context.Background(), biz.PhaseRawV1)
	require.NoError(t, err)
	assert.Equal(t, biz.RowCounts{Movies: 2, Users: 2, Ratings: 2}, batch.Counts())
	assert.Equal(t, "tt0113277", *batch.Movies[0].IMDbID)
	assert.Equal(t, biz.UnknownAgeRange, *batch.Users[1].AgeRange)
	assert.Equal(t, *snap.Ratings[0].CreatedAt, *batch.Ratings[0].CreatedAt)
	assert.Nil(t, batch.Ratings[1].CreatedAt)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "", formatString(nil))
	assert.Equal(t, "", formatIntPtr(nil))
	assert.Equal(t, "", formatTime(nil))
	assert.Equal(t, "3.75", formatFloat(3.75))
	assert.Equal(t, "4", formatFloat(4))

	local := time.Date(2023, 1, 2, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "2023-01-02T03:00:00Z", formatTime(&local))
}
