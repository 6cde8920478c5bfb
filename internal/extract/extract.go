// Package extract applies the site's fixed selectors to rendered pages.
package extract

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/render"
)

// DefaultAuthorPlaceholder is stored when no author selector matches.
const DefaultAuthorPlaceholder = "See article for details"

// Selectors names the CSS selectors used for the listing and article pages.
type Selectors struct {
	Item     string   `mapstructure:"item"`
	Headline string   `mapstructure:"headline"`
	Date     string   `mapstructure:"date"`
	Media    string   `mapstructure:"media"`
	Body     string   `mapstructure:"body"`
	Author   []string `mapstructure:"author"`
}

// DefaultSelectors matches the NPR section and story markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:     ".item",
		Headline: ".title a",
		Date:     ".teaser time",
		Media:    "div.imagewrap.has-source-dimensions picture img",
		Body:     "#storytext p",
		Author: []string{
			".byline__name a",
			".byline__name.byline__name--block",
			".byline__name",
		},
	}
}

// Extractor pulls candidates and article fields out of rendered documents.
type Extractor struct {
	sel         Selectors
	media       Strategy
	author      Strategy
	placeholder string
	logger      *zap.Logger
}

// New builds an Extractor. An empty placeholder uses DefaultAuthorPlaceholder.
func New(sel Selectors, placeholder string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if placeholder == "" {
		placeholder = DefaultAuthorPlaceholder
	}
	return &Extractor{
		sel:         sel,
		media:       AttrOf(sel.Media, "src"),
		author:      TextChain(sel.Author),
		placeholder: placeholder,
		logger:      logger,
	}
}

// Listing returns one candidate per item container. Missing headline, link or
// date are left empty; callers decide what to do with incomplete candidates.
func (e *Extractor) Listing(doc *render.Document) []article.Candidate {
	items := doc.QueryAll(e.sel.Item)
	out := make([]article.Candidate, 0, len(items))
	for _, item := range items {
		var c article.Candidate
		if a, ok := item.Find(e.sel.Headline); ok {
			c.Headline = a.Text()
			c.Link = a.Href()
		}
		if tm, ok := item.Find(e.sel.Date); ok {
			c.Date, _ = tm.Attr("datetime")
		}
		out = append(out, c)
	}
	return out
}

// Article extracts media, body and author independently. Each field degrades
// to its default on failure.
func (e *Extractor) Article(doc *render.Document) article.Fields {
	log := e.logger.With(zap.String("url", doc.URL()))
	var f article.Fields

	media, err := e.media(doc)
	if err != nil {
		log.Debug("media not found", zap.Error(err))
	}
	f.Media = media

	f.Paragraphs = e.paragraphs(doc)
	if len(f.Paragraphs) == 0 {
		log.Warn("body not found", zap.String("selector", e.sel.Body))
	}

	author, err := e.author(doc)
	if err != nil {
		log.Warn("author not found, using placeholder", zap.Error(err))
		author = e.placeholder
	}
	f.Author = author
	return f
}

func (e *Extractor) paragraphs(doc *render.Document) []string {
	var out []string
	for _, p := range doc.QueryAll(e.sel.Body) {
		if text := p.Text(); text != "" {
			out = append(out, text)
		}
	}
	return out
}
