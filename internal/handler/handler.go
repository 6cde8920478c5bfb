// Package handler adapts a scrape run to an event/response trigger, the shape
// used by function-as-a-service runtimes and by the HTTP daemon.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/config"
	"github.com/JakeFAU/npr-news-scraper/internal/scrape"
)

// Response messages.
const (
	MsgSuccess        = "Scraping completed successfully"
	MsgInvalidURL     = "URL must be an absolute http(s) URL"
	MsgListingFailed  = "Failed to load the website"
	MsgScrapingFailed = "An error occurred during scraping"
)

// Event triggers one run. An empty URL uses the configured listing page.
type Event struct {
	URL string `json:"url"`
}

// Response is the run outcome: an HTTP-style status and a JSON body.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Scraper runs one scrape.
type Scraper interface {
	Run(ctx context.Context, listingURL string) (*scrape.Result, error)
}

// Handler turns events into runs.
type Handler struct {
	scraper Scraper
	logger  *zap.Logger
}

// New builds a Handler.
func New(scraper Scraper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{scraper: scraper, logger: logger.Named("handler")}
}

type successBody struct {
	Message  string           `json:"message"`
	Articles []article.Record `json:"articles"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Handle runs a scrape for ev and never returns an error; failures are
// reported through the status code.
func (h *Handler) Handle(ctx context.Context, ev Event) Response {
	target := strings.TrimSpace(ev.URL)
	if target != "" {
		if err := config.ValidateListingURL(target); err != nil {
			h.logger.Warn("rejecting event", zap.String("url", ev.URL), zap.Error(err))
			return respond(http.StatusBadRequest, errorBody{Error: MsgInvalidURL})
		}
	}

	res, err := h.scraper.Run(ctx, target)
	if err != nil {
		h.logger.Error("scrape failed", zap.String("url", target), zap.Error(err))
		if errors.Is(err, scrape.ErrListingUnavailable) {
			return respond(http.StatusInternalServerError, errorBody{Error: MsgListingFailed})
		}
		return respond(http.StatusInternalServerError, errorBody{Error: MsgScrapingFailed})
	}

	articles := res.Records
	if articles == nil {
		articles = []article.Record{}
	}
	return respond(http.StatusOK, successBody{Message: MsgSuccess, Articles: articles})
}

func respond(status int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError, Body: `{"error":"` + MsgScrapingFailed + `"}`}
	}
	return Response{StatusCode: status, Body: string(data)}
}
