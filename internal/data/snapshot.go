package data

import (
	"context"
	"database/sql"
	"fmt"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type snapshotRepo struct {
	data *Data
	log  *log.Helper
}

// NewSnapshotRepo creates a repository reading the warehouse and the marts for export
func NewSnapshotRepo(data *Data, logger log.Logger) biz.SnapshotRepo {
	return &snapshotRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/snapshot")),
	}
}

// Snapshot reads all six result sets in one repeatable-read transaction.
func (r *snapshotRepo) Snapshot(ctx context.Context) (*biz.Snapshot, error) {
	var (
		movies    []Movie
		users     []User
		ratings   []Rating
		top       []TopByGenre
		ages      []AvgByAgeRange
		countries []RatingsByCountry
	)
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reads := []struct {
			name  string
			query *gorm.DB
			dest  any
		}{
			{"dw.movies", tx.Order("id"), &movies},
			{"dw.users", tx.Order("id"), &users},
			{"dw.ratings", tx.Order("user_id, movie_id, id"), &ratings},
			{"mart.top10_by_genre", tx.Order(topByGenreOrder), &top},
			{"mart.avg_by_age_range", tx.Order(avgByAgeRangeOrder), &ages},
			{"mart.ratings_by_country", tx.Order(ratingsByCountryOrder), &countries},
		}
		for _, rd := range reads {
			if err := rd.query.Find(rd.dest).Error; err != nil {
				return fmt.Errorf("failed to read %s: %w", rd.name, err)
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}

	snap := &biz.Snapshot{
		Movies:      convert(movies, (*Movie).toBiz),
		Users:       convert(users, (*User).toBiz),
		Ratings:     convert(ratings, (*Rating).toBiz),
		TopByGenre:  convert(top, (*TopByGenre).toBiz),
		AgeAverages: convert(ages, (*AvgByAgeRange).toBiz),
		Countries:   convert(countries, (*RatingsByCountry).toBiz),
	}
	r.log.WithContext(ctx).Debugf("snapshot read: movies=%d users=%d ratings=%d",
		len(snap.Movies), len(snap.Users), len(snap.Ratings))
	return snap, nil
}
