package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// Export layout under the export directory
const (
	exportMoviesFile    = "dw_movies.csv"
	exportUsersFile     = "dw_users.csv"
	exportRatingsFile   = "dw_ratings.csv"
	exportMartsDir      = "marts"
	exportTopByGenre    = "top10_by_genre.csv"
	exportAvgByAgeRange = "avg_by_age_range.csv"
	exportByCountry     = "ratings_by_country.csv"
)

type csvExporter struct {
	dir string
	log *log.Helper
}

// NewExportWriter creates a writer producing CSV files under the configured export dir
func NewExportWriter(c *conf.Lake, logger log.Logger) biz.ExportWriter {
	return &csvExporter{
		dir: c.ExportDir,
		log: log.NewHelper(log.With(logger, "module", "data/export")),
	}
}

func (e *csvExporter) Write(ctx context.Context, snap *biz.Snapshot) (*biz.ExportSummary, error) {
	dir, err := filepath.Abs(e.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export dir: %w", err)
	}
	martsDir := filepath.Join(dir, exportMartsDir)
	if err := os.MkdirAll(martsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	files := []struct {
		path   string
		header []string
		rows   [][]string
	}{
		{filepath.Join(dir, exportMoviesFile), []string{"id", "title", "year", "genre", "imdb_id"}, movieRecords(snap.Movies)},
		{filepath.Join(dir, exportUsersFile), []string{"id", "age_range", "country"}, userRecords(snap.Users)},
		{filepath.Join(dir, exportRatingsFile), []string{"id", "user_id", "movie_id", "rating", "created_at"}, ratingRecords(snap.Ratings)},
		{filepath.Join(martsDir, exportTopByGenre), []string{"genre", "movie_id", "title", "avg_rating", "n_ratings"}, topRecords(snap.TopByGenre)},
		{filepath.Join(martsDir, exportAvgByAgeRange), []string{"age_range", "avg_rating", "n"}, ageRecords(snap.AgeAverages)},
		{filepath.Join(martsDir, exportByCountry), []string{"country", "n"}, countryRecords(snap.Countries)},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeCSV(f.path, f.header, f.rows); err != nil {
			return nil, err
		}
	}

	summary := &biz.ExportSummary{
		Dir: dir,
		Rows: biz.ExportCounts{
			DWMovies:    len(snap.Movies),
			DWUsers:     len(snap.Users),
			DWRatings:   len(snap.Ratings),
			MartTop10:   len(snap.TopByGenre),
			MartAge:     len(snap.AgeAverages),
			MartCountry: len(snap.Countries),
		},
	}
	e.log.WithContext(ctx).Infof("exported warehouse and marts to %s", dir)
	return summary, nil
}

// writeCSV writes to a temporary file and renames it so readers never see a partial file.
func writeCSV(path string, header []string, rows [][]string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

func movieRecords(rows []*biz.WarehouseMovie) [][]string {
	out := make([][]string, 0, len(rows))
	for _, m := range rows {
		out = append(out, []string{formatInt(m.ID), formatString(m.Title), formatIntPtr(m.Year), formatString(m.Genre), m.IMDbID})
	}
	return out
}

func userRecords(rows []*biz.WarehouseUser) [][]string {
	out := make([][]string, 0, len(rows))
	for _, u := range rows {
		out = append(out, []string{formatInt(u.ID), u.AgeRange, formatString(u.Country)})
	}
	return out
}

func ratingRecords(rows []*biz.WarehouseRating) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			strconv.FormatInt(r.ID, 10),
			formatIntPtr(r.UserID),
			formatIntPtr(r.MovieID),
			formatFloat(r.Rating),
			formatTime(r.CreatedAt),
		})
	}
	return out
}

func topRecords(rows []*biz.GenreTopMovie) [][]string {
	out := make([][]string, 0, len(rows))
	for _, t := range rows {
		out = append(out, []string{
			formatString(t.Genre),
			formatInt(t.MovieID),
			formatString(t.Title),
			formatFloat(t.AvgRating),
			strconv.FormatInt(t.NRatings, 10),
		})
	}
	return out
}

func ageRecords(rows []*biz.AgeRangeAverage) [][]string {
	out := make([][]string, 0, len(rows))
	for _, a := range rows {
		out = append(out, []string{a.AgeRange, formatFloat(a.AvgRating), strconv.FormatInt(a.N, 10)})
	}
	return out
}

func countryRecords(rows []*biz.CountryCount) [][]string {
	out := make([][]string, 0, len(rows))
	for _, c := range rows {
		out = append(out, []string{formatString(c.Country), strconv.FormatInt(c.N, 10)})
	}
	return out
}

// NULL is exported as an empty cell.

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatInt(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatIntPtr(v *int32) string {
	if v == nil {
		return ""
	}
	return formatInt(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
