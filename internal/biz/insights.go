package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// InsightsUseCase serves read-only analytics over the marts.
type InsightsUseCase struct {
	marts MartRepo
	probe StoreProbe
	log   *log.Helper
}

// NewInsightsUseCase creates a new InsightsUseCase instance
func NewInsightsUseCase(marts MartRepo, probe StoreProbe, logger log.Logger) *InsightsUseCase {
	return &InsightsUseCase{
		marts: marts,
		probe: probe,
		log:   log.NewHelper(log.With(logger, "module", "biz/insights")),
	}
}

// Health reports whether the store answers.
func (uc *InsightsUseCase) Health(ctx context.Context) error {
	if err := uc.probe.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// TopByGenre returns at most ten movies per genre ordered by genre, average, count and title.
func (uc *InsightsUseCase) TopByGenre(ctx context.Context) ([]*GenreTopMovie, error) {
	rows, err := uc.marts.TopByGenre(ctx)
	if err != nil {
		return nil, storeErr("read top10_by_genre", err)
	}
	return rows, nil
}

func (uc *InsightsUseCase) AvgByAgeRange(ctx context.Context) ([]*AgeRangeAverage, error) {
	rows, err := uc.marts.AvgByAgeRange(ctx)
	if err != nil {
		return nil, storeErr("read avg_by_age_range", err)
	}
	return rows, nil
}

func (uc *InsightsUseCase) RatingsByCountry(ctx context.Context) ([]*CountryCount, error) {
	rows, err := uc.marts.RatingsByCountry(ctx)
	if err != nil {
		return nil, storeErr("read ratings_by_country", err)
	}
	return rows, nil
}

// QualityMetrics runs the fixed data-quality checks against the warehouse.
// The report always lists every check in QualityMetricNames order; a check
// the store did not return reports zero.
func (uc *InsightsUseCase) QualityMetrics(ctx context.Context) ([]*QualityMetric, error) {
	metrics, err := uc.marts.QualityMetrics(ctx)
	if err != nil {
		return nil, storeErr("read quality metrics", err)
	}
	values := make(map[string]int64, len(metrics))
	for _, m := range metrics {
		values[m.Metric] = m.Value
	}
	names := QualityMetricNames()
	out := make([]*QualityMetric, 0, len(names))
	for _, name := range names {
		v := values[name]
		if v > 0 {
			uc.log.WithContext(ctx).Warnf("data quality: %s=%d", name, v)
		}
		out = append(out, &QualityMetric{Metric: name, Value: v})
	}
	return out, nil
}

// Metric names reported by QualityMetrics.
const (
	MetricRatingsOutOfRange = "ratings_out_of_range"
	MetricUsersAgeUnknown   = "users_age_unknown"
	MetricMoviesYearNull    = "movies_year_null"
)

// QualityMetricNames lists the checks in report order.
func QualityMetricNames() []string {
	return []string{MetricRatingsOutOfRange, MetricUsersAgeUnknown, MetricMoviesYearNull}
}
