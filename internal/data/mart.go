package data

import (
	"context"
	"fmt"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

var martDDL = []string{
	`create schema if not exists mart`,
	`create or replace view mart.top10_by_genre as
	 with ranked as (
	   select m.genre,
	          m.id as movie_id,
	          m.title,
	          round(avg(r.rating)::numeric, 2) as avg_rating,
	          count(*) as n_ratings,
	          row_number() over (partition by m.genre
	                             order by avg(r.rating) desc, count(*) desc, m.title asc, m.id asc) as rn
	   from dw.movies m
	   join dw.ratings r on r.movie_id = m.id
	   group by m.genre, m.id, m.title
	 )
	 select genre, movie_id, title, avg_rating, n_ratings
	 from ranked
	 where rn <= 10`,
	`create or replace view mart.avg_by_age_range as
	 select u.age_range, round(avg(r.rating)::numeric, 2) as avg_rating, count(*) as n
	 from dw.ratings r
	 join dw.users u on u.id = r.user_id
	 group by u.age_range
	 order by avg_rating desc, u.age_range`,
	`create or replace view mart.ratings_by_country as
	 select u.country, count(*) as n
	 from dw.ratings r
	 join dw.users u on u.id = r.user_id
	 group by u.country
	 order by n desc, u.country`,
}

// Display order of each mart, shared by the API and the export.
const (
	topByGenreOrder       = "genre, avg_rating desc, n_ratings desc, title, movie_id"
	avgByAgeRangeOrder    = "avg_rating desc, age_range"
	ratingsByCountryOrder = "n desc, country"
)

var qualitySQL = fmt.Sprintf(`select '%[1]s' as metric, count(*) as value
  from dw.ratings where rating < %.1[4]f or rating > %.1[5]f
union all
select '%[2]s', count(*) from dw.users where coalesce(age_range, '') in ('', '%[6]s')
union all
select '%[3]s', count(*) from dw.movies where year is null`,
	biz.MetricRatingsOutOfRange, biz.MetricUsersAgeUnknown, biz.MetricMoviesYearNull,
	biz.MinRating, biz.MaxRating, biz.UnknownAgeRange)

// Cache keys for mart reads
const (
	cacheKeyTopByGenre       = "mart:top10_by_genre"
	cacheKeyAvgByAgeRange    = "mart:avg_by_age_range"
	cacheKeyRatingsByCountry = "mart:ratings_by_country"
)

type martRepo struct {
	data *Data
	log  *log.Helper
}

// NewMartRepo creates a new mart repository
func NewMartRepo(data *Data, logger log.Logger) biz.MartRepo {
	return &martRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/mart")),
	}
}

// Build recreates the mart views. The views are pure functions of the warehouse.
func (r *martRepo) Build(ctx context.Context) error {
	if err := execAll(r.data.DB(ctx), martDDL); err != nil {
		return fmt.Errorf("failed to build marts: %w", err)
	}
	return nil
}

func (r *martRepo) TopByGenre(ctx context.Context) ([]*biz.GenreTopMovie, error) {
	return cached(ctx, r.data, cacheKeyTopByGenre, func() ([]*biz.GenreTopMovie, error) {
		var rows []TopByGenre
		if err := r.data.DB(ctx).Order(topByGenreOrder).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to read top10_by_genre: %w", err)
		}
		return convert(rows, (*TopByGenre).toBiz), nil
	})
}

func (r *martRepo) AvgByAgeRange(ctx context.Context) ([]*biz.AgeRangeAverage, error) {
	return cached(ctx, r.data, cacheKeyAvgByAgeRange, func() ([]*biz.AgeRangeAverage, error) {
		var rows []AvgByAgeRange
		if err := r.data.DB(ctx).Order(avgByAgeRangeOrder).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to read avg_by_age_range: %w", err)
		}
		return convert(rows, (*AvgByAgeRange).toBiz), nil
	})
}

func (r *martRepo) RatingsByCountry(ctx context.Context) ([]*biz.CountryCount, error) {
	return cached(ctx, r.data, cacheKeyRatingsByCountry, func() ([]*biz.CountryCount, error) {
		var rows []RatingsByCountry
		if err := r.data.DB(ctx).Order(ratingsByCountryOrder).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to read ratings_by_country: %w", err)
		}
		return convert(rows, (*RatingsByCountry).toBiz), nil
	})
}

// QualityMetrics is always read from the store.
func (r *martRepo) QualityMetrics(ctx context.Context) ([]*biz.QualityMetric, error) {
	var rows []QualityMetric
	if err := r.data.DB(ctx).Raw(qualitySQL).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read quality metrics: %w", err)
	}
	return convert(rows, (*QualityMetric).toBiz), nil
}

func (r *martRepo) Invalidate(ctx context.Context) {
	invalidate(ctx, r.data)
}
