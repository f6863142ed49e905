package data

import (
	"context"
	"fmt"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

var warehouseDDL = []string{
	`create schema if not exists dw`,
	`create schema if not exists mart`,
	// Views depend on dw.ratings; drop them before touching the tables.
	`drop view if exists mart.top10_by_genre cascade`,
	`drop view if exists mart.avg_by_age_range cascade`,
	`drop view if exists mart.ratings_by_country cascade`,
	`create table if not exists dw.movies(
	   id int primary key, title text, year int, genre text, imdb_id text not null)`,
	`create table if not exists dw.users(
	   id int primary key, age_range text not null, country text)`,
	fmt.Sprintf(`create table if not exists dw.ratings(
	   id bigserial primary key,
	   user_id int,
	   movie_id int,
	   rating numeric(3,1) not null check (rating between %.1f and %.1f),
	   created_at timestamptz)`, biz.MinRating, biz.MaxRating),
	`truncate dw.movies, dw.users, dw.ratings restart identity`,
}

const loadMoviesSQL = `insert into dw.movies(id, title, year, genre, imdb_id)
select id, title, year, genre,
       case when imdb_id ~ ?::text then imdb_id
            else ?::text || regexp_replace(coalesce(imdb_id, ''), '[^0-9]', '', 'g') end
from stg.movies`

const loadUsersSQL = `insert into dw.users(id, age_range, country)
select id, coalesce(nullif(age_range, ''), ?::text), country
from stg.users`

const loadRatingsSQL = `insert into dw.ratings(user_id, movie_id, rating, created_at)
select user_id, movie_id,
       case when rating is null then ?::numeric
            when rating < ?::numeric then ?::numeric
            when rating > ?::numeric then ?::numeric
            else rating end,
       created_at at time zone 'UTC'
from stg.ratings`

type warehouseRepo struct {
	data *Data
	log  *log.Helper
}

// NewWarehouseRepo creates a new warehouse repository
func NewWarehouseRepo(data *Data, logger log.Logger) biz.WarehouseRepo {
	return &warehouseRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/warehouse")),
	}
}

// EnsureSchema creates the dw tables if needed and empties them. The fact
// table's identity restarts so surrogate keys are reproducible.
func (r *warehouseRepo) EnsureSchema(ctx context.Context) error {
	if err := execAll(r.data.DB(ctx), warehouseDDL); err != nil {
		return fmt.Errorf("failed to prepare warehouse schema: %w", err)
	}
	return nil
}

// Load moves the canonical staging rows into the warehouse, applying the cleaning rules.
func (r *warehouseRepo) Load(ctx context.Context) error {
	db := r.data.DB(ctx)

	movies := db.Exec(loadMoviesSQL, biz.IMDbPattern, biz.IMDbPrefix)
	if movies.Error != nil {
		return fmt.Errorf("failed to load dw.movies: %w", movies.Error)
	}
	users := db.Exec(loadUsersSQL, biz.UnknownAgeRange)
	if users.Error != nil {
		return fmt.Errorf("failed to load dw.users: %w", users.Error)
	}
	ratings := db.Exec(loadRatingsSQL,
		biz.MinRating,
		biz.MinRating, biz.MinRating,
		biz.MaxRating, biz.MaxRating,
	)
	if ratings.Error != nil {
		return fmt.Errorf("failed to load dw.ratings: %w", ratings.Error)
	}

	r.log.WithContext(ctx).Infof("warehouse loaded: movies=%d users=%d ratings=%d",
		movies.RowsAffected, users.RowsAffected, ratings.RowsAffected)
	return nil
}
