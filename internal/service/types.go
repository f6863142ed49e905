package service

import "movieflix/internal/biz"

// Status values reported by the datalake endpoints
const (
	StatusStaged   = "staged"
	StatusPipeline = "dw_loaded_marts_ready_and_exported"
	StatusExported = "exported"
)

type HealthReply struct {
	OK bool `json:"ok"`
}

type RowsReply struct {
	Movies  int `json:"movies"`
	Users   int `json:"users"`
	Ratings int `json:"ratings"`
}

type IngestReply struct {
	Phase  string    `json:"phase"`
	Status string    `json:"status"`
	Rows   RowsReply `json:"rows"`
}

type ExportRowsReply struct {
	DWMovies    int `json:"dw_movies"`
	DWUsers     int `json:"dw_users"`
	DWRatings   int `json:"dw_ratings"`
	MartTop10   int `json:"mart_top10"`
	MartAge     int `json:"mart_age"`
	MartCountry int `json:"mart_country"`
}

type ExportSummaryReply struct {
	Dir  string          `json:"dir"`
	Rows ExportRowsReply `json:"rows"`
}

type PipelineReply struct {
	RunID  string              `json:"run_id"`
	Phase  string              `json:"phase"`
	Status string              `json:"status"`
	Export *ExportSummaryReply `json:"export"`
}

type ExportReply struct {
	Status string              `json:"status"`
	Export *ExportSummaryReply `json:"export"`
}

type TopMovieReply struct {
	Genre     *string `json:"genre"`
	MovieID   int32   `json:"movie_id"`
	Title     *string `json:"title"`
	AvgRating float64 `json:"avg_rating"`
	NRatings  int64   `json:"n_ratings"`
}

type AgeRangeReply struct {
	AgeRange  string  `json:"age_range"`
	AvgRating float64 `json:"avg_rating"`
	N         int64   `json:"n"`
}

type CountryReply struct {
	Country *string `json:"country"`
	N       int64   `json:"n"`
}

type MetricReply struct {
	Metric string `json:"metric"`
	Value  int64  `json:"value"`
}

func rowsToReply(rows biz.RowCounts) RowsReply {
	return RowsReply{Movies: rows.Movies, Users: rows.Users, Ratings: rows.Ratings}
}

func exportToReply(summary *biz.ExportSummary) *ExportSummaryReply {
	if summary == nil {
		return nil
	}
	return &ExportSummaryReply{
		Dir: summary.Dir,
		Rows: ExportRowsReply{
			DWMovies:    summary.Rows.DWMovies,
			DWUsers:     summary.Rows.DWUsers,
			DWRatings:   summary.Rows.DWRatings,
			MartTop10:   summary.Rows.MartTop10,
			MartAge:     summary.Rows.MartAge,
			MartCountry: summary.Rows.MartCountry,
		},
	}
}
