package data

import (
	"context"
	"database/sql"
	"fmt"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var stagingDDL = []string{
	`create schema if not exists stg`,
	`create table if not exists stg.movies(id int, title text, year int, genre text, imdb_id text)`,
	`create table if not exists stg.users(id int, age_range text, country text)`,
	`create table if not exists stg.ratings(user_id int, movie_id int, rating numeric, created_at timestamp)`,
	`create table if not exists stg.movies_v3(movie_id int, title text, release_year int, primary_genre text, imdb text)`,
	`create table if not exists stg.ratings_v3(uid int, mid int, score numeric, ts timestamptz)`,
	// Raw scores are unbounded until the warehouse clamps them.
	`alter table stg.ratings alter column rating type numeric`,
	`alter table stg.ratings_v3 alter column score type numeric`,
}

var conformV3SQL = []string{
	`truncate stg.movies, stg.ratings`,
	`insert into stg.movies(id, title, year, genre, imdb_id)
	 select movie_id, title, release_year, primary_genre, imdb from stg.movies_v3`,
	// ts is timestamptz; pin the conversion to UTC instead of the session time zone.
	`insert into stg.ratings(user_id, movie_id, rating, created_at)
	 select uid, mid, score, ts at time zone 'UTC' from stg.ratings_v3`,
}

type stagingRepo struct {
	data *Data
	log  *log.Helper
}

// NewStagingRepo creates a new staging repository
func NewStagingRepo(data *Data, logger log.Logger) biz.StagingRepo {
	return &stagingRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/staging")),
	}
}

func (r *stagingRepo) EnsureSchema(ctx context.Context) error {
	err := r.data.InTx(ctx, func(ctx context.Context) error {
		return execAll(r.data.DB(ctx), stagingDDL)
	})
	if err != nil {
		return fmt.Errorf("failed to create staging schema: %w", err)
	}
	return nil
}

// Replace truncates and bulk loads the batch's staging tables with COPY in one
// transaction on a dedicated pgx connection.
func (r *stagingRepo) Replace(ctx context.Context, batch *biz.Batch) error {
	sqlDB, err := r.data.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return rawPgx(conn, func(pc *pgx.Conn) error {
		return pgx.BeginFunc(ctx, pc, func(tx pgx.Tx) error {
			layout := batch.Phase.Layout()
			truncate := fmt.Sprintf("truncate %s, %s, %s", layout.Movies.Table, layout.Users.Table, layout.Ratings.Table)
			if _, err := tx.Exec(ctx, truncate); err != nil {
				return fmt.Errorf("failed to truncate staging: %w", err)
			}
			for _, src := range stagingSources(batch) {
				n, err := tx.CopyFrom(ctx,
					pgx.Identifier{src.dataset.Table.Schema, src.dataset.Table.Name},
					src.dataset.Columns,
					src.rows,
				)
				if err != nil {
					return fmt.Errorf("failed to copy into %s: %w", src.dataset.Table, err)
				}
				r.log.WithContext(ctx).Debugf("copied %d rows into %s", n, src.dataset.Table)
			}
			return nil
		})
	})
}

func (r *stagingRepo) ConformV3(ctx context.Context) error {
	if err := execAll(r.data.DB(ctx), conformV3SQL); err != nil {
		return fmt.Errorf("failed to conform v3 staging: %w", err)
	}
	return nil
}

type stagingSource struct {
	dataset biz.Dataset
	rows    pgx.CopyFromSource
}

func stagingSources(batch *biz.Batch) []stagingSource {
	layout := batch.Phase.Layout()
	users := batch.Users
	out := []stagingSource{{layout.Users, pgx.CopyFromSlice(len(users), func(i int) ([]any, error) {
		u := users[i]
		return []any{u.ID, u.AgeRange, u.Country}, nil
	})}}

	if batch.Phase.NeedsConform() {
		movies, ratings := batch.MoviesV3, batch.RatingsV3
		return append(out,
			stagingSource{layout.Movies, pgx.CopyFromSlice(len(movies), func(i int) ([]any, error) {
				m := movies[i]
				return []any{m.MovieID, m.Title, m.ReleaseYear, m.PrimaryGenre, m.IMDb}, nil
			})},
			stagingSource{layout.Ratings, pgx.CopyFromSlice(len(ratings), func(i int) ([]any, error) {
				rt := ratings[i]
				return []any{rt.UID, rt.MID, rt.Score, rt.TS}, nil
			})},
		)
	}

	movies, ratings := batch.Movies, batch.Ratings
	return append(out,
		stagingSource{layout.Movies, pgx.CopyFromSlice(len(movies), func(i int) ([]any, error) {
			m := movies[i]
			return []any{m.ID, m.Title, m.Year, m.Genre, m.IMDbID}, nil
		})},
		stagingSource{layout.Ratings, pgx.CopyFromSlice(len(ratings), func(i int) ([]any, error) {
			rt := ratings[i]
			return []any{rt.UserID, rt.MovieID, rt.Rating, rt.CreatedAt}, nil
		})},
	)
}

// rawPgx hands fn the pgx connection behind a database/sql connection.
func rawPgx(conn *sql.Conn, fn func(*pgx.Conn) error) error {
	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(sc.Conn())
	})
}
