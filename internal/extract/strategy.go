package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/npr-news-scraper/internal/render"
)

// ErrNotFound reports that a selector matched nothing usable.
var ErrNotFound = errors.New("no match")

// Strategy pulls one string value out of a document.
type Strategy func(doc *render.Document) (string, error)

// TextOf returns a Strategy reading the text of the first element matching selector.
func TextOf(selector string) Strategy {
	return func(doc *render.Document) (string, error) {
		el, ok := doc.QueryOne(selector)
		if !ok {
			return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
		}
		text := el.Text()
		if text == "" {
			return "", fmt.Errorf("%s: empty text: %w", selector, ErrNotFound)
		}
		return text, nil
	}
}

// AttrOf returns a Strategy reading attribute attr of the first element matching selector.
func AttrOf(selector, attr string) Strategy {
	return func(doc *render.Document) (string, error) {
		el, ok := doc.QueryOne(selector)
		if !ok {
			return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
		}
		v, ok := el.Attr(attr)
		if !ok || v == "" {
			return "", fmt.Errorf("%s[%s]: %w", selector, attr, ErrNotFound)
		}
		return v, nil
	}
}

// Chain tries strategies in order and returns the first success. When all of
// them fail the joined errors are returned.
func Chain(strategies ...Strategy) Strategy {
	return func(doc *render.Document) (string, error) {
		errs := make([]error, 0, len(strategies))
		for _, s := range strategies {
			v, err := s(doc)
			if err == nil {
				return v, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return "", ErrNotFound
		}
		return "", errors.Join(errs...)
	}
}

// TextChain builds a Chain of TextOf strategies, most specific selector first.
func TextChain(selectors []string) Strategy {
	strategies := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		strategies = append(strategies, TextOf(sel))
	}
	return Chain(strategies...)
}
