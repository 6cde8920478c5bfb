// Package article defines the scraped article types and the transform from raw
// page values into persisted records.
package article

import (
	"strings"
	"time"
)

// Candidate is a listing-page entry before the article page is visited.
type Candidate struct {
	Headline string `json:"headline"`
	Link     string `json:"link"`
	Date     string `json:"date"`
}

// Valid reports whether the candidate carries enough data to be processed.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Headline) != "" && strings.TrimSpace(c.Link) != ""
}

// Fields holds the raw values pulled from an article page.
type Fields struct {
	Media      string
	Paragraphs []string
	Author     string
}

// Record is the normalized row written to the article table.
type Record struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Headline    string     `json:"headline"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	Author      string     `json:"author"`
	Resource    string     `json:"resource"`
	Media       string     `json:"media"`
	Link        string     `json:"link"`
	Date        string     `json:"date"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
