package service

import (
	"context"
	"net/http"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// InsightsService exposes the marts and the quality report over HTTP
type InsightsService struct {
	insights *biz.InsightsUseCase
}

// NewInsightsService creates a new InsightsService
func NewInsightsService(insights *biz.InsightsUseCase) *InsightsService {
	return &InsightsService{insights: insights}
}

// Health implements GET /api/health
func (s *InsightsService) Health(ctx khttp.Context) error {
	return s.serve(ctx, func(c context.Context) (interface{}, error) {
		if err := s.insights.Health(c); err != nil {
			return nil, errors.ServiceUnavailable("STORE_UNAVAILABLE", err.Error()).WithCause(err)
		}
		return &HealthReply{OK: true}, nil
	})
}

// TopByGenre implements GET /api/insights/top10-by-genre
func (s *InsightsService) TopByGenre(ctx khttp.Context) error {
	return s.serve(ctx, func(c context.Context) (interface{}, error) {
		rows, err := s.insights.TopByGenre(c)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		out := make([]*TopMovieReply, 0, len(rows))
		for _, r := range rows {
			out = append(out, &TopMovieReply{
				Genre:     r.Genre,
				MovieID:   r.MovieID,
				Title:     r.Title,
				AvgRating: r.AvgRating,
				NRatings:  r.NRatings,
			})
		}
		return out, nil
	})
}

// AvgByAge implements GET /api/insights/avg-by-age
func (s *InsightsService) AvgByAge(ctx khttp.Context) error {
	return s.serve(ctx, func(c context.Context) (interface{}, error) {
		rows, err := s.insights.AvgByAgeRange(c)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		out := make([]*AgeRangeReply, 0, len(rows))
		for _, r := range rows {
			out = append(out, &AgeRangeReply{AgeRange: r.AgeRange, AvgRating: r.AvgRating, N: r.N})
		}
		return out, nil
	})
}

// ByCountry implements GET /api/insights/by-country
func (s *InsightsService) ByCountry(ctx khttp.Context) error {
	return s.serve(ctx, func(c context.Context) (interface{}, error) {
		rows, err := s.insights.RatingsByCountry(c)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		out := make([]*CountryReply, 0, len(rows))
		for _, r := range rows {
			out = append(out, &CountryReply{Country: r.Country, N: r.N})
		}
		return out, nil
	})
}

// QualityMetrics implements GET /api/quality/metrics
func (s *InsightsService) QualityMetrics(ctx khttp.Context) error {
	return s.serve(ctx, func(c context.Context) (interface{}, error) {
		metrics, err := s.insights.QualityMetrics(c)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		out := make([]*MetricReply, 0, len(metrics))
		for _, m := range metrics {
			out = append(out, &MetricReply{Metric: m.Metric, Value: m.Value})
		}
		return out, nil
	})
}

func (s *InsightsService) serve(ctx khttp.Context, fn func(context.Context) (interface{}, error)) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return fn(c)
	})
	out, err := h(ctx, ctx.Request())
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, out)
}
