package article

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedIDs struct {
	ids []string
	err error
}

func (f *fixedIDs) NewID() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		headline string
		suffix   int
		want     string
	}{
		{"three words", "Storm Hits City Hard", 42, "stormhitscity-42"},
		{"punctuation and digits", "U.S. Jobs, 2024 Report", 7, "usjobs-7"},
		{"fewer than three words", "Breaking", 1, "breaking-1"},
		{"extra whitespace", "  Big   news\ttoday here ", 2000, "bignewstoday-2000"},
		{"non ascii letters dropped", "Café Owners Rally", 3, "cafownersrally-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Slug(tt.headline, tt.suffix))
		})
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Para one. Para two....", Summary([]string{"Para one.", "Para two."}))
	assert.Equal(t, "", Summary(nil))
	assert.Equal(t, "", Summary([]string{"  "}))

	words := make([]string, 40)
	for i := range words {
		words[i] = "w"
	}
	got := Summary([]string{strings.Join(words, " ")})
	assert.Equal(t, strings.TrimSuffix(strings.Repeat("w ", 25), " ")+"...", got)
}

func TestBodyHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"<p>Hello world</p><br><br><ul><li><a href='https://x/y'>Visit NPR</a></li></ul>",
		BodyHTML("Hello world", "https://x/y", "NPR"))
	assert.Equal(t,
		"<br><br><ul><li><a href='https://x/y'>Visit article @ NPR</a></li></ul>",
		BodyHTML("", "https://x/y", "NPR"))
	assert.Equal(t, "", BodyHTML("", "", "NPR"))
	assert.Contains(t, BodyHTML("a <b> c", "https://x/y", "NPR"), "<p>a &lt;b&gt; c</p>")
}

func TestNormalizeDateLegacyPadding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-01-01T12:00:00.000", NormalizeDate("2024-01-01T12:00:00"))
	assert.Equal(t, "2024-01-01T12:00:00-05:00", NormalizeDate("2024-01-01T12:00:00-05:00"))
	assert.Equal(t, "2024-01-01", NormalizeDate("2024-01-01"))
	assert.Equal(t, "", NormalizeDate(""))
}

func TestParsePublished(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"2024-01-01T12:00:00-05:00",
		"2024-01-01T17:00:00Z",
		"2024-01-01T17:00:00",
		"2024-01-01T17:00:00.000",
	} {
		got, err := ParsePublished(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s parsed as %v", raw, got)
	}

	got, err := ParsePublished("Tue, 02 Jan 2024 00:00:00 GMT")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Equal(got))

	_, err = ParsePublished("")
	require.Error(t, err)
	_, err = ParsePublished("not a date")
	require.Error(t, err)
}

func TestTransformerTransform(t *testing.T) {
	t.Parallel()

	tr := NewTransformer("NPR", &fixedIDs{ids: []string{"id-1"}}, func(int) int { return 9 })
	rec, err := tr.Transform(
		Candidate{Headline: "Storm Hits City Hard", Link: "https://news/1", Date: "2024-01-01T12:00:00"},
		Fields{Paragraphs: []string{"Para one.", "Para two."}, Author: "Jane Doe"},
	)
	require.NoError(t, err)

	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "stormhitscity-10", rec.Slug)
	assert.Equal(t, "Para one. Para two....", rec.Summary)
	assert.Equal(t, "<p>Para one.\n\nPara two.</p><br><br><ul><li><a href='https://news/1'>Visit NPR</a></li></ul>", rec.Body)
	assert.Equal(t, "Jane Doe", rec.Author)
	assert.Equal(t, "NPR", rec.Resource)
	assert.Equal(t, "", rec.Media)
	assert.Equal(t, "2024-01-01T12:00:00.000", rec.Date)
	require.NotNil(t, rec.PublishedAt)
	assert.True(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Equal(*rec.PublishedAt))
}

func TestTransformerSlugSuffixRange(t *testing.T) {
	t.Parallel()

	ids := &fixedIDs{ids: make([]string, 200)}
	tr := NewTransformer("NPR", ids, nil)
	for i := 0; i < 200; i++ {
		rec, err := tr.Transform(Candidate{Headline: "A B C", Link: "https://x"}, Fields{})
		require.NoError(t, err)
		_, suffix, ok := strings.Cut(rec.Slug, "-")
		require.True(t, ok)
		n, err := strconv.Atoi(suffix)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 2000)
	}
}

func TestTransformerRejectsInvalidCandidate(t *testing.T) {
	t.Parallel()

	tr := NewTransformer("NPR", &fixedIDs{ids: []string{"id"}}, nil)
	_, err := tr.Transform(Candidate{Link: "https://x"}, Fields{})
	require.ErrorIs(t, err, ErrInvalidCandidate)
	_, err = tr.Transform(Candidate{Headline: "Headline"}, Fields{})
	require.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestTransformerIDFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("entropy exhausted")
	tr := NewTransformer("NPR", &fixedIDs{err: boom}, nil)
	_, err := tr.Transform(Candidate{Headline: "A", Link: "https://x"}, Fields{})
	require.ErrorIs(t, err, boom)
}

func TestTransformerUnparseableDateKeepsRawValue(t *testing.T) {
	t.Parallel()

	tr := NewTransformer("NPR", &fixedIDs{ids: []string{"id"}}, nil)
	rec, err := tr.Transform(Candidate{Headline: "A", Link: "https://x", Date: "someday"}, Fields{})
	require.NoError(t, err)
	assert.Equal(t, "someday", rec.Date)
	assert.Nil(t, rec.PublishedAt)
}
