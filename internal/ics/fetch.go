package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	appLog "eventcal/internal/log"
)

// maxFeedBytes bounds a downloaded feed.
const maxFeedBytes = 16 << 20

// Fetcher downloads iCalendar feeds, retrying connection errors and 5xx
// responses with backoff.
type Fetcher struct {
	client *retryablehttp.Client
}

// NewFetcher returns a Fetcher whose single attempts time out after timeout
// and which retries at most retryMax times.
func NewFetcher(timeout time.Duration, retryMax int) *Fetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = retryMax
	client.Logger = retryLogger{}
	return &Fetcher{client: client}
}

// Fetch GETs rawURL and returns the body of a 200 response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("feed URL is empty")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", redactURL(rawURL), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("fetch %s: feed larger than %d bytes", redactURL(rawURL), maxFeedBytes)
	}

	appLog.Info("ics fetch success", "url", redactURL(rawURL), "bytes", len(body))
	return body, nil
}

// redactURL keeps scheme and host of a feed URL. Private calendar links
// carry their secret in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

// retryLogger routes the retry client's logging through the app logger with
// URLs redacted.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...any) {
	kv = redactKVs(kv)
	var err error
	for i := 0; i+1 < len(kv); i += 2 {
		if e, ok := kv[i+1].(error); ok && kv[i] == "error" {
			err = e
		}
	}
	appLog.Error(msg, err, kv...)
}

func (retryLogger) Info(msg string, kv ...any)  { appLog.Info(msg, redactKVs(kv)...) }
func (retryLogger) Debug(msg string, kv ...any) { appLog.Debug(msg, redactKVs(kv)...) }
func (retryLogger) Warn(msg string, kv ...any)  { appLog.Warn(msg, redactKVs(kv)...) }

func redactKVs(kv []any) []any {
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		if out[i] == "url" {
			out[i+1] = redactURL(fmt.Sprint(out[i+1]))
		}
	}
	return out
}
