package biz

import (
	"context"
	"time"
)

// StagingMovie is a movies.csv row of the raw_v1 and improved_v2 layouts.
type StagingMovie struct {
	ID     *int32
	Title  *string
	Year   *int32
	Genre  *string
	IMDbID *string
}

// StagingMovieV3 is a movies.csv row of the reformulated_v3 layout.
type StagingMovieV3 struct {
	MovieID      *int32
	Title        *string
	ReleaseYear  *int32
	PrimaryGenre *string
	IMDb         *string
}

// StagingUser is a users.csv row; every layout shares it.
type StagingUser struct {
	ID       *int32
	AgeRange *string
	Country  *string
}

// StagingRating is a ratings.csv row of the raw_v1 and improved_v2 layouts.
type StagingRating struct {
	UserID    *int32
	MovieID   *int32
	Rating    *float64
	CreatedAt *time.Time
}

// StagingRatingV3 is a ratings.csv row of the reformulated_v3 layout.
type StagingRatingV3 struct {
	UID   *int32
	MID   *int32
	Score *float64
	TS    *time.Time
}

// Batch is one parsed phase snapshot. Phase selects which movie and rating
// slices are populated: the V3 ones for reformulated_v3, the canonical ones otherwise.
type Batch struct {
	Phase     Phase
	Movies    []StagingMovie
	MoviesV3  []StagingMovieV3
	Users     []StagingUser
	Ratings   []StagingRating
	RatingsV3 []StagingRatingV3
}

// Counts returns the number of rows per entity.
func (b *Batch) Counts() RowCounts {
	if b.Phase.NeedsConform() {
		return RowCounts{Movies: len(b.MoviesV3), Users: len(b.Users), Ratings: len(b.RatingsV3)}
	}
	return RowCounts{Movies: len(b.Movies), Users: len(b.Users), Ratings: len(b.Ratings)}
}

// RowCounts holds staged row counts.
type RowCounts struct {
	Movies  int
	Users   int
	Ratings int
}

// WarehouseMovie is a dw.movies row.
type WarehouseMovie struct {
	ID     int32
	Title  *string
	Year   *int32
	Genre  *string
	IMDbID string
}

// WarehouseUser is a dw.users row.
type WarehouseUser struct {
	ID       int32
	AgeRange string
	Country  *string
}

// WarehouseRating is a dw.ratings row.
type WarehouseRating struct {
	ID        int64
	UserID    *int32
	MovieID   *int32
	Rating    float64
	CreatedAt *time.Time
}

// GenreTopMovie is a mart.top10_by_genre row.
type GenreTopMovie struct {
	Genre     *string
	MovieID   int32
	Title     *string
	AvgRating float64
	NRatings  int64
}

// AgeRangeAverage is a mart.avg_by_age_range row.
type AgeRangeAverage struct {
	AgeRange  string
	AvgRating float64
	N         int64
}

// CountryCount is a mart.ratings_by_country row.
type CountryCount struct {
	Country *string
	N       int64
}

// QualityMetric is one data-quality check result.
type QualityMetric struct {
	Metric string
	Value  int64
}

// Snapshot is a consistent read of the warehouse and the marts, in display order.
type Snapshot struct {
	Movies      []*WarehouseMovie
	Users       []*WarehouseUser
	Ratings     []*WarehouseRating
	TopByGenre  []*GenreTopMovie
	AgeAverages []*AgeRangeAverage
	Countries   []*CountryCount
}

// IngestResult is returned by PipelineUseCase.Ingest.
type IngestResult struct {
	Phase Phase
	Rows  RowCounts
}

// ExportCounts holds the number of rows written per exported file.
type ExportCounts struct {
	DWMovies    int
	DWUsers     int
	DWRatings   int
	MartTop10   int
	MartAge     int
	MartCountry int
}

// ExportSummary describes an export run.
type ExportSummary struct {
	Dir  string
	Rows ExportCounts
}

// PipelineResult is returned by PipelineUseCase.Run.
type PipelineResult struct {
	RunID  string
	Phase  Phase
	Ingest *IngestResult
	Export *ExportSummary
}

// LakeReader reads a phase snapshot from the data lake.
type LakeReader interface {
	ReadBatch(ctx context.Context, phase Phase) (*Batch, error)
}

// StagingRepo owns the stg schema.
type StagingRepo interface {
	EnsureSchema(ctx context.Context) error
	// Replace truncates the batch's staging tables and loads its rows atomically.
	Replace(ctx context.Context, batch *Batch) error
	// ConformV3 rewrites the v3 staging tables into the canonical ones.
	ConformV3(ctx context.Context) error
}

// WarehouseRepo owns the dw schema.
type WarehouseRepo interface {
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context) error
}

// MartRepo owns the mart schema and its reads.
type MartRepo interface {
	Build(ctx context.Context) error
	TopByGenre(ctx context.Context) ([]*GenreTopMovie, error)
	AvgByAgeRange(ctx context.Context) ([]*AgeRangeAverage, error)
	RatingsByCountry(ctx context.Context) ([]*CountryCount, error)
	QualityMetrics(ctx context.Context) ([]*QualityMetric, error)
	// Invalidate drops cached mart reads after a rebuild.
	Invalidate(ctx context.Context)
}

// SnapshotRepo reads the warehouse and the marts in a single read-only transaction.
type SnapshotRepo interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ExportWriter persists a snapshot outside the store.
type ExportWriter interface {
	Write(ctx context.Context, snap *Snapshot) (*ExportSummary, error)
}

// Transaction runs fn in one all-or-nothing store transaction. Repositories
// called with the ctx handed to fn take part in it.
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunLocker serializes pipeline runs.
type RunLocker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoreProbe checks store connectivity.
type StoreProbe interface {
	Ping(ctx context.Context) error
}
