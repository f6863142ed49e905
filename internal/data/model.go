package data

import (
	"time"

	"movieflix/internal/biz"
)

// Movie represents the dw.movies table
type Movie struct {
	ID     int32   `gorm:"column:id;primaryKey"`
	Title  *string `gorm:"column:title"`
	Year   *int32  `gorm:"column:year"`
	Genre  *string `gorm:"column:genre"`
	IMDbID string  `gorm:"column:imdb_id"`
}

// TableName overrides the table name
func (Movie) TableName() string {
	return "dw.movies"
}

// User represents the dw.users table
type User struct {
	ID       int32   `gorm:"column:id;primaryKey"`
	AgeRange string  `gorm:"column:age_range"`
	Country  *string `gorm:"column:country"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "dw.users"
}

// Rating represents the dw.ratings fact table
type Rating struct {
	ID        int64      `gorm:"column:id;primaryKey"`
	UserID    *int32     `gorm:"column:user_id"`
	MovieID   *int32     `gorm:"column:movie_id"`
	Rating    float64    `gorm:"column:rating"`
	CreatedAt *time.Time `gorm:"column:created_at"`
}

// TableName overrides the table name
func (Rating) TableName() string {
	return "dw.ratings"
}

// TopByGenre represents the mart.top10_by_genre view
type TopByGenre struct {
	Genre     *string `gorm:"column:genre"`
	MovieID   int32   `gorm:"column:movie_id"`
	Title     *string `gorm:"column:title"`
	AvgRating float64 `gorm:"column:avg_rating"`
	NRatings  int64   `gorm:"column:n_ratings"`
}

func (TopByGenre) TableName() string {
	return "mart.top10_by_genre"
}

// AvgByAgeRange represents the mart.avg_by_age_range view
type AvgByAgeRange struct {
	AgeRange  string  `gorm:"column:age_range"`
	AvgRating float64 `gorm:"column:avg_rating"`
	N         int64   `gorm:"column:n"`
}

func (AvgByAgeRange) TableName() string {
	return "mart.avg_by_age_range"
}

// RatingsByCountry represents the mart.ratings_by_country view
type RatingsByCountry struct {
	Country *string `gorm:"column:country"`
	N       int64   `gorm:"column:n"`
}

func (RatingsByCountry) TableName() string {
	return "mart.ratings_by_country"
}

// QualityMetric is one row of the quality report query
type QualityMetric struct {
	Metric string `gorm:"column:metric"`
	Value  int64  `gorm:"column:value"`
}

func (m *Movie) toBiz() *biz.WarehouseMovie {
	return &biz.WarehouseMovie{ID: m.ID, Title: m.Title, Year: m.Year, Genre: m.Genre, IMDbID: m.IMDbID}
}

func (u *User) toBiz() *biz.WarehouseUser {
	return &biz.WarehouseUser{ID: u.ID, AgeRange: u.AgeRange, Country: u.Country}
}

func (r *Rating) toBiz() *biz.WarehouseRating {
	out := &biz.WarehouseRating{ID: r.ID, UserID: r.UserID, MovieID: r.MovieID, Rating: r.Rating}
	if r.CreatedAt != nil {
		utc := r.CreatedAt.UTC()
		out.CreatedAt = &utc
	}
	return out
}

func (t *TopByGenre) toBiz() *biz.GenreTopMovie {
	return &biz.GenreTopMovie{Genre: t.Genre, MovieID: t.MovieID, Title: t.Title, AvgRating: t.AvgRating, NRatings: t.NRatings}
}

func (a *AvgByAgeRange) toBiz() *biz.AgeRangeAverage {
	return &biz.AgeRangeAverage{AgeRange: a.AgeRange, AvgRating: a.AvgRating, N: a.N}
}

func (c *RatingsByCountry) toBiz() *biz.CountryCount {
	return &biz.CountryCount{Country: c.Country, N: c.N}
}

func (q *QualityMetric) toBiz() *biz.QualityMetric {
	return &biz.QualityMetric{Metric: q.Metric, Value: q.Value}
}

// convert maps a slice of rows with fn.
func convert[M any, B any](rows []M, fn func(*M) *B) []*B {
	out := make([]*B, 0, len(rows))
	for i := range rows {
		out = append(out, fn(&rows[i]))
	}
	return out
}
