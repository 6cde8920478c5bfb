package article

import (
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	slugWords      = 3
	slugSuffixMax  = 2000
	summaryTokens  = 25
	summaryEllipse = "..."
	legacyDateLen  = 19
)

// ErrInvalidCandidate is returned when a candidate lacks a headline or link.
var ErrInvalidCandidate = errors.New("candidate is missing headline or link")

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Transformer turns candidates and extracted fields into records.
type Transformer struct {
	resource string
	ids      IDGenerator
	intn     func(n int) int
}

// NewTransformer builds a Transformer stamping records with resource.
// A nil intn falls back to math/rand/v2.
func NewTransformer(resource string, ids IDGenerator, intn func(n int) int) *Transformer {
	if intn == nil {
		intn = rand.IntN
	}
	return &Transformer{resource: resource, ids: ids, intn: intn}
}

// Resource returns the source tag written on every record.
func (t *Transformer) Resource() string {
	return t.resource
}

// Transform builds a fresh record for one processed candidate.
func (t *Transformer) Transform(c Candidate, f Fields) (Record, error) {
	if !c.Valid() {
		return Record{}, ErrInvalidCandidate
	}
	id, err := t.ids.NewID()
	if err != nil {
		return Record{}, fmt.Errorf("generate record id: %w", err)
	}

	headline := strings.TrimSpace(c.Headline)
	link := strings.TrimSpace(c.Link)
	text := JoinParagraphs(f.Paragraphs)

	rec := Record{
		ID:       id,
		Slug:     Slug(headline, t.intn(slugSuffixMax)+1),
		Headline: headline,
		Summary:  Summary(f.Paragraphs),
		Body:     BodyHTML(text, link, t.resource),
		Author:   f.Author,
		Resource: t.resource,
		Media:    f.Media,
		Link:     link,
		Date:     NormalizeDate(c.Date),
	}
	if published, err := ParsePublished(c.Date); err == nil {
		rec.PublishedAt = &published
	}
	return rec, nil
}

// Slug concatenates the first three headline words, keeps only a-z, and
// appends "-suffix".
func Slug(headline string, suffix int) string {
	words := strings.Fields(headline)
	if len(words) > slugWords {
		words = words[:slugWords]
	}
	lowered := strings.ToLower(strings.Join(words, ""))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s-%d", b.String(), suffix)
}

// JoinParagraphs joins body paragraphs with blank lines.
func JoinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}

// Summary returns the first 25 words of the body followed by an ellipsis, or
// "" when there is no body text.
func Summary(paragraphs []string) string {
	tokens := strings.Fields(JoinParagraphs(paragraphs))
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > summaryTokens {
		tokens = tokens[:summaryTokens]
	}
	return strings.Join(tokens, " ") + summaryEllipse
}

// BodyHTML renders the stored body fragment with a backlink to the source.
func BodyHTML(body, link, resource string) string {
	body = strings.TrimSpace(body)
	switch {
	case body != "":
		return fmt.Sprintf("<p>%s</p><br><br><ul><li><a href='%s'>Visit %s</a></li></ul>",
			html.EscapeString(body), html.EscapeString(link), html.EscapeString(resource))
	case link != "":
		return fmt.Sprintf("<br><br><ul><li><a href='%s'>Visit article @ %s</a></li></ul>",
			html.EscapeString(link), html.EscapeString(resource))
	default:
		return ""
	}
}

// NormalizeDate pads a seconds-precision timestamp (exactly 19 characters) with
// ".000". Any other input is returned unchanged.
func NormalizeDate(raw string) string {
	if len(raw) == legacyDateLen {
		return raw + ".000"
	}
	return raw
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParsePublished parses a listing datetime attribute into UTC.
func ParsePublished(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty publication date")
	}
	for _, layout := range publishedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse publication date %q: %w", raw, err)
	}
	return ts.UTC(), nil
}
