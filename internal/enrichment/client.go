package enrichment

import (
	"context"
	"log/slog"
	"time"
)

// Outcomes reported to a Recorder
const (
	OutcomeIdentified = "identified"
	OutcomeCached     = "cached"
	OutcomeFallback   = "fallback"
)

// Recorder receives the outcome of each identification
type Recorder interface {
	ObserveIdentify(outcome string, duration time.Duration)
}

// Client wraps an Identifier and absorbs every failure into the fallback record
type Client struct {
	identifier Identifier
	cache      Cache
	recorder   Recorder
}

// NewClient creates a new Client. cache and recorder may be nil.
func NewClient(identifier Identifier, cache Cache, recorder Recorder) *Client {
	if cache == nil {
		cache = noopCache{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Client{
		identifier: identifier,
		cache:      cache,
		recorder:   recorder,
	}
}

// Identify returns product details for a barcode. It never fails: any backend
// error, empty or malformed response yields Fallback().
func (c *Client) Identify(ctx context.Context, code, format string) ProductInfo {
	start := time.Now()

	if info, ok := c.cache.Get(code, format); ok {
		c.recorder.ObserveIdentify(OutcomeCached, time.Since(start))
		return *info
	}

	info, err := c.identify(ctx, code, format)
	if err != nil {
		slog.Error("Product lookup failed",
			"code", code,
			"format", format,
			"error", err,
		)
		c.recorder.ObserveIdentify(OutcomeFallback, time.Since(start))
		return Fallback()
	}

	c.cache.Set(code, format, *info)
	c.recorder.ObserveIdentify(OutcomeIdentified, time.Since(start))
	return *info
}

func (c *Client) identify(ctx context.Context, code, format string) (info *ProductInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, &panicError{value: r}
		}
	}()
	info, err = c.identifier.Identify(ctx, code, format)
	if err == nil && info == nil {
		err = errEmptyResult
	}
	return info, err
}

// Close closes the underlying identifier
func (c *Client) Close() error {
	return c.identifier.Close()
}

type noopRecorder struct{}

func (noopRecorder) ObserveIdentify(_ string, _ time.Duration) {}
