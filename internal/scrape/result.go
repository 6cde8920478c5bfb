package scrape

import (
	"time"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
)

// Failure records a candidate that exhausted its attempts.
type Failure struct {
	Candidate article.Candidate `json:"candidate"`
	Attempts  int               `json:"attempts"`
	Err       error             `json:"-"`
	Error     string            `json:"error"`
}

// Result summarizes one run. It is also the side file written after a run.
type Result struct {
	Source     string              `json:"source"`
	ListingURL string              `json:"listing_url"`
	Candidates []article.Candidate `json:"candidates"`
	Records    []article.Record    `json:"articles"`
	Failed     []Failure           `json:"failed"`
	Skipped    int                 `json:"skipped"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// IDs returns the identifiers of the persisted records in insertion order.
func (r *Result) IDs() []string {
	ids := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
