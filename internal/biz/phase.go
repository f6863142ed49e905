package biz

import "fmt"

// Phase identifies one of the source snapshot layouts in the data lake.
type Phase string

const (
	PhaseRawV1          Phase = "raw_v1"
	PhaseImprovedV2     Phase = "improved_v2"
	PhaseReformulatedV3 Phase = "reformulated_v3"
)

// DefaultPhase is used by the CLI when --phase is omitted.
const DefaultPhase = PhaseRawV1

// Table is a schema-qualified relation name.
type Table struct {
	Schema string
	Name   string
}

func (t Table) String() string {
	return t.Schema + "." + t.Name
}

// Dataset is one CSV file of a phase and the staging table it lands in.
type Dataset struct {
	File    string
	Table   Table
	Columns []string
}

// Layout is the staging shape of a phase.
type Layout struct {
	Movies  Dataset
	Users   Dataset
	Ratings Dataset
}

// Datasets returns the three datasets in load order.
func (l Layout) Datasets() []Dataset {
	return []Dataset{l.Movies, l.Users, l.Ratings}
}

var (
	StagingMovies    = Table{Schema: "stg", Name: "movies"}
	StagingMoviesV3  = Table{Schema: "stg", Name: "movies_v3"}
	StagingUsers     = Table{Schema: "stg", Name: "users"}
	StagingRatings   = Table{Schema: "stg", Name: "ratings"}
	StagingRatingsV3 = Table{Schema: "stg", Name: "ratings_v3"}
)

var canonicalLayout = Layout{
	Movies:  Dataset{File: "movies.csv", Table: StagingMovies, Columns: []string{"id", "title", "year", "genre", "imdb_id"}},
	Users:   Dataset{File: "users.csv", Table: StagingUsers, Columns: []string{"id", "age_range", "country"}},
	Ratings: Dataset{File: "ratings.csv", Table: StagingRatings, Columns: []string{"user_id", "movie_id", "rating", "created_at"}},
}

var reformulatedLayout = Layout{
	Movies:  Dataset{File: "movies.csv", Table: StagingMoviesV3, Columns: []string{"movie_id", "title", "release_year", "primary_genre", "imdb"}},
	Users:   canonicalLayout.Users,
	Ratings: Dataset{File: "ratings.csv", Table: StagingRatingsV3, Columns: []string{"uid", "mid", "score", "ts"}},
}

var phases = []Phase{PhaseRawV1, PhaseImprovedV2, PhaseReformulatedV3}

// Phases lists every known phase.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

// ParsePhase validates a phase identifier coming from a request or flag.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q (want one of %v)", ErrInvalidPhase, s, phases)
	}
	return p, nil
}

func (p Phase) Valid() bool {
	for _, known := range phases {
		if p == known {
			return true
		}
	}
	return false
}

// NeedsConform reports whether staging rows must be rewritten into the canonical shape.
func (p Phase) NeedsConform() bool {
	return p == PhaseReformulatedV3
}

// Layout returns the staging shape for p. Callers validate p first.
func (p Phase) Layout() Layout {
	if p.NeedsConform() {
		return reformulatedLayout
	}
	return canonicalLayout
}

func (p Phase) String() string {
	return string(p)
}
