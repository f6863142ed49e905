package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// Accepted timestamp layouts, tried in order. Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

type lakeReader struct {
	dir string
	log *log.Helper
}

// NewLakeReader creates a reader over the phase directories of the data lake
func NewLakeReader(c *conf.Lake, logger log.Logger) biz.LakeReader {
	return &lakeReader{
		dir: c.Dir,
		log: log.NewHelper(log.With(logger, "module", "data/lake")),
	}
}

// ReadBatch parses the three files of phase. Any failure is a *biz.DataSourceError.
func (r *lakeReader) ReadBatch(ctx context.Context, phase biz.Phase) (*biz.Batch, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", biz.ErrInvalidPhase, phase)
	}
	layout := phase.Layout()
	batch := &biz.Batch{Phase: phase}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.read(ctx, phase, layout.Movies, func(t *csvTable) error {
			if phase.NeedsConform() {
				return t.each(func(row csvRow) {
					batch.MoviesV3 = append(batch.MoviesV3, biz.StagingMovieV3{
						MovieID:      row.integer("movie_id"),
						Title:        row.text("title"),
						ReleaseYear:  row.integer("release_year"),
						PrimaryGenre: row.text("primary_genre"),
						IMDb:         row.text("imdb"),
					})
				})
			}
			return t.each(func(row csvRow) {
				batch.Movies = append(batch.Movies, biz.StagingMovie{
					ID:     row.integer("id"),
					Title:  row.text("title"),
					Year:   row.integer("year"),
					Genre:  row.text("genre"),
					IMDbID: row.text("imdb_id"),
				})
			})
		})
	})
	g.Go(func() error {
		return r.read(ctx, phase, layout.Users, func(t *csvTable) error {
			return t.each(func(row csvRow) {
				batch.Users = append(batch.Users, biz.StagingUser{
					ID:       row.integer("id"),
					AgeRange: row.text("age_range"),
					Country:  row.text("country"),
				})
			})
		})
	})
	g.Go(func() error {
		return r.read(ctx, phase, layout.Ratings, func(t *csvTable) error {
			if phase.NeedsConform() {
				return t.each(func(row csvRow) {
					batch.RatingsV3 = append(batch.RatingsV3, biz.StagingRatingV3{
						UID:   row.integer("uid"),
						MID:   row.integer("mid"),
						Score: row.decimal("score"),
						TS:    row.timestamp("ts"),
					})
				})
			}
			return t.each(func(row csvRow) {
				batch.Ratings = append(batch.Ratings, biz.StagingRating{
					UserID:    row.integer("user_id"),
					MovieID:   row.integer("movie_id"),
					Rating:    row.decimal("rating"),
					CreatedAt: row.timestamp("created_at"),
				})
			})
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *lakeReader) read(ctx context.Context, phase biz.Phase, ds biz.Dataset, fill func(*csvTable) error) error {
	name := filepath.Join(string(phase), ds.File)
	path := filepath.Join(r.dir, name)

	t, err := readCSV(path, ds.Columns)
	if err != nil {
		return &biz.DataSourceError{File: name, Err: err}
	}
	for _, col := range t.extra {
		r.log.WithContext(ctx).Warnf("%s: ignoring column %q not in the %s layout", name, col, phase)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fill(t); err != nil {
		return &biz.DataSourceError{File: name, Err: err}
	}
	r.log.WithContext(ctx).Debugf("read %d rows from %s", len(t.records), path)
	return nil
}

// csvTable is a parsed file with its header resolved against the expected columns.
type csvTable struct {
	index   map[string]int
	extra   []string
	records [][]string
}

func readCSV(path string, want []string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &csvTable{index: make(map[string]int, len(header))}
	for i, col := range header {
		col = normalizeColumn(col)
		if _, dup := t.index[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		t.index[col] = i
		if !slices.Contains(want, col) {
			t.extra = append(t.extra, col)
		}
	}
	var missing []string
	for _, col := range want {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %v", missing)
	}

	t.records, err = reader.ReadAll()
	if err != nil {
		return nil, err
	}
	for i, rec := range t.records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", i+2, len(rec), len(header))
		}
	}
	return t, nil
}

// each hands every record to fn and reports the first cell that failed to parse.
func (t *csvTable) each(fn func(csvRow)) error {
	for i, rec := range t.records {
		var rowErr error
		fn(csvRow{table: t, record: rec, err: &rowErr})
		if rowErr != nil {
			return fmt.Errorf("line %d: %w", i+2, rowErr)
		}
	}
	return nil
}

type csvRow struct {
	table  *csvTable
	record []string
	err    *error
}

// raw returns the cell of col as written; an empty cell is NULL.
func (r csvRow) raw(col string) (string, bool) {
	i := r.table.index[col]
	if i >= len(r.record) || r.record[i] == "" {
		return "", false
	}
	return r.record[i], true
}

// number returns the trimmed cell of col for numeric parsing.
func (r csvRow) number(col string) (string, bool) {
	v, ok := r.raw(col)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r csvRow) fail(col, v string, err error) {
	if *r.err == nil {
		*r.err = fmt.Errorf("column %s: invalid value %q: %w", col, v, err)
	}
}

func (r csvRow) text(col string) *string {
	v, ok := r.raw(col)
	if !ok {
		return nil
	}
	return &v
}

func (r csvRow) integer(col string) *int32 {
	v, ok := r.number(col)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		// Integer columns holding NULLs are often written as floats ("2000.0").
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			r.fail(col, v, err)
			return nil
		}
		n = int64(f)
	}
	out := int32(n)
	return &out
}

func (r csvRow) decimal(col string) *float64 {
	v, ok := r.number(col)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(col, v, err)
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func (r csvRow) timestamp(col string) *time.Time {
	v, ok := r.number(col)
	if !ok {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	r.fail(col, v, errors.New("unrecognized timestamp format"))
	return nil
}

func normalizeColumn(col string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
}
