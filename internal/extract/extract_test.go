package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/render"
)

func mustDoc(t *testing.T, html string) *render.Document {
	t.Helper()
	doc, err := render.NewDocument(html, "https://www.npr.org/2024/01/01/storm")
	require.NoError(t, err)
	return doc
}

func TestListing(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
<div class="item">
  <h2 class="title"><a href="https://news/1">Storm Hits City Hard</a></h2>
  <p class="teaser"><time datetime="2024-01-01T12:00:00">Jan 1</time></p>
</div>
<div class="item">
  <h2 class="title"><a href="/relative">Second</a></h2>
</div>
<div class="item"><p>no title</p></div>
</body></html>`)

	got := New(DefaultSelectors(), "", nil).Listing(doc)
	require.Len(t, got, 3)
	assert.Equal(t, article.Candidate{
		Headline: "Storm Hits City Hard",
		Link:     "https://news/1",
		Date:     "2024-01-01T12:00:00",
	}, got[0])
	assert.Equal(t, "https://www.npr.org/relative", got[1].Link)
	assert.Equal(t, "", got[1].Date)
	assert.Equal(t, article.Candidate{}, got[2])
	assert.False(t, got[2].Valid())
}

func TestArticleAuthorFallbackOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "linked byline wins",
			html: `<div class="byline__name byline__name--block"><a>Linked Name</a></div>`,
			want: "Linked Name",
		},
		{
			name: "block byline",
			html: `<div class="byline__name byline__name--block">Block Name</div><div class="byline__name">Generic</div>`,
			want: "Block Name",
		},
		{
			name: "generic byline only",
			html: `<p class="byline__name">Generic Name</p>`,
			want: "Generic Name",
		},
		{
			name: "placeholder",
			html: `<p class="byline">nobody</p>`,
			want: DefaultAuthorPlaceholder,
		},
	}
	ex := New(DefaultSelectors(), "", zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := ex.Article(mustDoc(t, "<html><body>"+tt.html+"</body></html>"))
			assert.Equal(t, tt.want, f.Author)
		})
	}
}

func TestArticleFields(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
<div class="imagewrap has-source-dimensions"><picture><img src="https://media/img.jpg"></picture></div>
<div id="storytext"><p> Para one. </p><p></p><p>Para two.</p></div>
<p>outside</p>
<span class="byline__name"><a>Reporter</a></span>
</body></html>`)

	f := New(DefaultSelectors(), "", nil).Article(doc)
	assert.Equal(t, "https://media/img.jpg", f.Media)
	assert.Equal(t, []string{"Para one.", "Para two."}, f.Paragraphs)
	assert.Equal(t, "Reporter", f.Author)
}

func TestArticleMissingFieldsDegrade(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ex := New(DefaultSelectors(), "n/a", zap.New(core))

	f := ex.Article(mustDoc(t, `<html><body><div class="imagewrap"><img src="x"></div></body></html>`))
	assert.Equal(t, "", f.Media)
	assert.Nil(t, f.Paragraphs)
	assert.Equal(t, "n/a", f.Author)

	assert.Equal(t, 1, logs.FilterMessage("media not found").Len())
	assert.Equal(t, 1, logs.FilterMessage("body not found").Len())
	assert.Equal(t, 1, logs.FilterMessage("author not found, using placeholder").Len())
}

func TestChain(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><b class="two">second</b><i class="three" data-x="attr"></i></body></html>`)

	v, err := Chain(TextOf(".one"), TextOf(".two"), TextOf(".three"))(doc)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	calls := 0
	counting := func(*render.Document) (string, error) {
		calls++
		return "", ErrNotFound
	}
	_, err = Chain(TextOf(".two"), counting)(doc)
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "later strategies must not run after a success")

	_, err = Chain(TextOf(".one"), TextOf(".three"))(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Chain()(doc)
	require.ErrorIs(t, err, ErrNotFound)

	v, err = AttrOf(".three", "data-x")(doc)
	require.NoError(t, err)
	assert.Equal(t, "attr", v)
	_, err = AttrOf(".three", "src")(doc)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTextChainSkipsBlankSelectors(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><em class="name">Found</em></body></html>`)
	v, err := TextChain([]string{"", "  ", ".name"})(doc)
	require.NoError(t, err)
	assert.Equal(t, "Found", v)
}
