package biz

import (
	"regexp"
	"strings"
)

// Cleaning rules applied when staging rows are moved into the warehouse.
// The data layer interpolates these constants into its SQL.
const (
	UnknownAgeRange = "UNKNOWN"
	MinRating       = 0.5
	MaxRating       = 5.0
	IMDbPrefix      = "tt"
	// IMDbPattern is a POSIX regex usable by both Go and PostgreSQL.
	IMDbPattern = "^tt[0-9]+$"
)

var imdbRe = regexp.MustCompile(IMDbPattern)

// NormalizeIMDbID keeps well-formed ids and rebuilds the rest from their digits.
func NormalizeIMDbID(v *string) string {
	if v != nil && imdbRe.MatchString(*v) {
		return *v
	}
	var b strings.Builder
	b.WriteString(IMDbPrefix)
	if v != nil {
		for _, r := range *v {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// NormalizeAgeRange maps null and empty values to UnknownAgeRange.
func NormalizeAgeRange(v *string) string {
	if v == nil || *v == "" {
		return UnknownAgeRange
	}
	return *v
}

// ClampRating maps null to MinRating and pins the value into [MinRating, MaxRating].
func ClampRating(v *float64) float64 {
	switch {
	case v == nil:
		return MinRating
	case *v < MinRating:
		return MinRating
	case *v > MaxRating:
		return MaxRating
	default:
		return *v
	}
}

// RatingInRange is the check behind the ratings_out_of_range quality metric.
func RatingInRange(v float64) bool {
	return v >= MinRating && v <= MaxRating
}

// CleaningReport counts the staged rows the warehouse load will rewrite.
type CleaningReport struct {
	RatingsClamped  int
	UsersAgeUnknown int
	IMDbRewritten   int
}

// PreviewCleaning applies the cleaning rules to batch without changing it.
func PreviewCleaning(batch *Batch) CleaningReport {
	var rep CleaningReport
	imdb := func(v *string) {
		if NormalizeIMDbID(v) != deref(v) {
			rep.IMDbRewritten++
		}
	}
	rating := func(v *float64) {
		if v == nil || !RatingInRange(*v) {
			rep.RatingsClamped++
		}
	}
	if batch.Phase.NeedsConform() {
		for i := range batch.MoviesV3 {
			imdb(batch.MoviesV3[i].IMDb)
		}
		for i := range batch.RatingsV3 {
			rating(batch.RatingsV3[i].Score)
		}
	} else {
		for i := range batch.Movies {
			imdb(batch.Movies[i].IMDbID)
		}
		for i := range batch.Ratings {
			rating(batch.Ratings[i].Rating)
		}
	}
	for i := range batch.Users {
		if NormalizeAgeRange(batch.Users[i].AgeRange) == UnknownAgeRange {
			rep.UsersAgeUnknown++
		}
	}
	return rep
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
