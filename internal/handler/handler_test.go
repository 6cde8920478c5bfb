package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/scrape"
)

type fakeScraper struct {
	gotURL string
	calls  int
	res    *scrape.Result
	err    error
}

func (f *fakeScraper) Run(_ context.Context, listingURL string) (*scrape.Result, error) {
	f.calls++
	f.gotURL = listingURL
	return f.res, f.err
}

func TestHandleSuccess(t *testing.T) {
	t.Parallel()

	s := &fakeScraper{res: &scrape.Result{Records: []article.Record{{ID: "a", Headline: "Storm Hits City Hard"}}}}
	resp := New(s, nil).Handle(context.Background(), Event{URL: " https://www.npr.org/sections/politics/ "})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://www.npr.org/sections/politics/", s.gotURL)

	var body struct {
		Message  string           `json:"message"`
		Articles []article.Record `json:"articles"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, MsgSuccess, body.Message)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, "Storm Hits City Hard", body.Articles[0].Headline)
}

func TestHandleDefaultsURLAndEmptyArticles(t *testing.T) {
	t.Parallel()

	s := &fakeScraper{res: &scrape.Result{}}
	resp := New(s, nil).Handle(context.Background(), Event{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", s.gotURL)
	assert.JSONEq(t, `{"message":"Scraping completed successfully","articles":[]}`, resp.Body)
}

func TestHandleInvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"not a url", "/sections/news", "ftp://npr.org/x", "https://"} {
		s := &fakeScraper{}
		resp := New(s, nil).Handle(context.Background(), Event{URL: raw})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
		assert.Zero(t, s.calls, raw)
		assert.JSONEq(t, `{"error":"`+MsgInvalidURL+`"}`, resp.Body)
	}
}

func TestHandleRunFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"listing", fmt.Errorf("%w: timeout", scrape.ErrListingUnavailable), MsgListingFailed},
		{"database", errors.New("begin replace: connection refused"), MsgScrapingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := New(&fakeScraper{err: tt.err}, nil).Handle(context.Background(), Event{})
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, resp.Body)
		})
	}
}
