package data

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLake(t *testing.T, dir string, phase biz.Phase, files map[string]string) {
	t.Helper()
	phaseDir := filepath.Join(dir, string(phase))
	require.NoError(t, os.MkdirAll(phaseDir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(phaseDir, name), []byte(body), 0o644))
	}
}

func newTestLake(dir string) biz.LakeReader {
	return NewLakeReader(&conf.Lake{Dir: dir}, log.NewStdLogger(io.Discard))
}

func TestReadBatchRawV1(t *testing.T) {
	dir := t.TempDir()
	writeLake(t, dir, biz.PhaseRawV1, map[string]string{
		"movies.csv": "\ufeffid,title,year,genre,imdb_id\n" +
			"1,Heat,1995,Crime,tt0113277\n" +
			"2,\"Up, Up\",,Animation,1049413\n",
		"users.csv": "id,age_range,country\n1,25-34,BR\n2,,\n",
		"ratings.csv": "user_id,movie_id,rating,created_at\n" +
			"1,1,4.5,2023-01-02 03:04:05\n" +
			"2,2,,2023-01-02T03:04:05-03:00\n" +
			"2,1,9,\n",
	})

	batch, err := newTestLake(dir).ReadBatch(context.Background(), biz.PhaseRawV1)
	require.NoError(t, err)

	assert.Equal(t, biz.RowCounts{Movies: 2, Users: 2, Ratings: 3}, batch.Counts())
	assert.Empty(t, batch.MoviesV3)

	m := batch.Movies[1]
	assert.Equal(t, int32(2), *m.ID)
	assert.Equal(t, "Up, Up", *m.Title)
	assert.Nil(t, m.Year)
	assert.Equal(t, "1049413", *m.IMDbID)

	assert.Nil(t, batch.Users[1].AgeRange)
	assert.Nil(t, batch.Users[1].Country)

	r := batch.Ratings
	assert.Equal(t, 4.5, *r[0].Rating)
	assert.Equal(t, time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), *r[0].CreatedAt)
	assert.Nil(t, r[1].Rating)
	assert.Equal(t, time.Date(2023, 1, 2, 6, 4, 5, 0, time.UTC), *r[1].CreatedAt)
	assert.Equal(t, 9.0, *r[2].Rating)
	assert.Nil(t, r[2].CreatedAt)
}

func TestReadBatchReformulatedV3(t *testing.T) {
	dir := t.TempDir()
	writeLake(t, dir, biz.PhaseReformulatedV3, map[string]string{
		"movies.csv":  "movie_id,title,release_year,primary_genre,imdb\n7,Alien,1979.0,Horror,tt0078748\n",
		"users.csv":   "id,age_range,country\n1,35-44,PT\n",
		"ratings.csv": "uid,mid,score,ts\n1,7,-1,2024-05-01T10:00:00Z\n",
	})

	batch, err := newTestLake(dir).ReadBatch(context.Background(), biz.PhaseReformulatedV3)
	require.NoError(t, err)

	assert.Empty(t, batch.Movies)
	assert.Empty(t, batch.Ratings)
	require.Len(t, batch.MoviesV3, 1)
	assert.Equal(t, int32(1979), *batch.MoviesV3[0].ReleaseYear)
	require.Len(t, batch.RatingsV3, 1)
	assert.Equal(t, -1.0, *batch.RatingsV3[0].Score)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), *batch.RatingsV3[0].TS)
}

func TestReadBatchIgnoresExtraColumns(t *testing.T) {
	dir := t.TempDir()
	writeLake(t, dir, biz.PhaseImprovedV2, map[string]string{
		"movies.csv":  "id,title,year,genre,imdb_id,budget\n1,Heat,1995,Crime,tt0113277,60000000\n",
		"users.csv":   " ID , Age_Range ,country\n1,18-24,US\n",
		"ratings.csv": "user_id,movie_id,rating,created_at\n",
	})

	batch, err := newTestLake(dir).ReadBatch(context.Background(), biz.PhaseImprovedV2)
	require.NoError(t, err)
	assert.Equal(t, biz.RowCounts{Movies: 1, Users: 1, Ratings: 0}, batch.Counts())
	assert.Equal(t, "18-24", *batch.Users[0].AgeRange)
}

func TestReadBatchDataSourceErrors(t *testing.T) {
	complete := map[string]string{
		"movies.csv":  "id,title,year,genre,imdb_id\n1,Heat,1995,Crime,tt0113277\n",
		"users.csv":   "id,age_range,country\n1,25-34,BR\n",
		"ratings.csv": "user_id,movie_id,rating,created_at\n1,1,4,2023-01-01\n",
	}
	tests := []struct {
		name     string
		override map[string]string
		file     string
	}{
		{"missing file", map[string]string{"ratings.csv": ""}, "raw_v1/ratings.csv"},
		{"missing column", map[string]string{"users.csv": "id,country\n1,BR\n"}, "raw_v1/users.csv"},
		{"bad integer", map[string]string{"movies.csv": "id,title,year,genre,imdb_id\nx,Heat,1995,Crime,tt1\n"}, "raw_v1/movies.csv"},
		{"bad timestamp", map[string]string{"ratings.csv": "user_id,movie_id,rating,created_at\n1,1,4,yesterday\n"}, "raw_v1/ratings.csv"},
		{"empty file", map[string]string{"users.csv": "-"}, "raw_v1/users.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			files := map[string]string{}
			for k, v := range complete {
				files[k] = v
			}
			for k, v := range tt.override {
				switch v {
				case "":
					delete(files, k)
				case "-":
					files[k] = ""
				default:
					files[k] = v
				}
			}
			writeLake(t, dir, biz.PhaseRawV1, files)

			_, err := newTestLake(dir).ReadBatch(context.Background(), biz.PhaseRawV1)
			var dse *biz.DataSourceError
			require.True(t, errors.As(err, &dse), "got %v", err)
			assert.Equal(t, tt.file, dse.File)
		})
	}
}

func TestReadBatchRejectsInvalidPhase(t *testing.T) {
	_, err := newTestLake(t.TempDir()).ReadBatch(context.Background(), "raw_v0")
	assert.True(t, errors.Is(err, biz.ErrInvalidPhase))
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "imdb_id", normalizeColumn("\ufeff IMDB_ID "))
	assert.Equal(t, "title", normalizeColumn("title"))
}
