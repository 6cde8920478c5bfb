package render

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// StaticConfig controls the plain HTTP renderer.
type StaticConfig struct {
	UserAgent string
}

// Static loads pages over plain HTTP with colly. No scripts run, so the wait
// condition is ignored; it suits server-rendered pages and tests.
type Static struct {
	cfg       StaticConfig
	transport http.RoundTripper
	logger    *zap.Logger

	html string
	url  string
}

// NewStatic builds a Static renderer.
func NewStatic(cfg StaticConfig, logger *zap.Logger) *Static {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Static{cfg: cfg, transport: newHTTPTransport(), logger: logger}
}

type visitResult struct {
	body     []byte
	finalURL string
	err      error
}

// Load fetches rawURL and keeps its body as the current page.
func (s *Static) Load(ctx context.Context, rawURL string, _ WaitCondition, timeout time.Duration) error {
	collector := colly.NewCollector(colly.AllowURLRevisit())
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	if timeout > 0 {
		collector.SetRequestTimeout(timeout)
	}
	collector.WithTransport(s.transport)

	var (
		res     visitResult
		respErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		res.body = append([]byte(nil), r.Body...)
		res.finalURL = r.Request.URL.String()
	})
	collector.OnError(func(_ *colly.Response, err error) {
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("load %s: %w", rawURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("load %s: %w", rawURL, err)
		}
		if respErr != nil {
			return fmt.Errorf("load %s: %w", rawURL, respErr)
		}
	}

	s.html = string(res.body)
	s.url = res.finalURL
	if s.url == "" {
		s.url = rawURL
	}
	s.logger.Debug("page loaded", zap.String("url", rawURL), zap.Int("bytes", len(res.body)))
	return nil
}

// Document parses the most recently loaded page.
func (s *Static) Document(_ context.Context) (*Document, error) {
	if s.url == "" {
		return nil, ErrNoPage
	}
	return NewDocument(s.html, s.url)
}

// Close is a no-op; it exists so Static satisfies the same lifecycle as Chromedp.
func (s *Static) Close() error {
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
