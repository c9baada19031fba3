// Package lookup resolves scanned symbols against the UPCitemdb product API.
package lookup

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-barcode-lookup/config"
	"github.com/aluiziolira/go-barcode-lookup/metrics"
	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/parser"
)

const maxLoggedBody = 2048

// Client issues one GET per lookup against the configured endpoint.
type Client struct {
	endpoint  string
	apiKey    string
	collector *colly.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records lookup outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(lg *slog.Logger) Option {
	return func(c *Client) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// NewClient builds a lookup client configured from cfg.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	endpoint := cfg.LookupURL()
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "parse lookup url")
	}
	if parsed.Host == "" {
		return nil, errors.New("lookup url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	c := &Client{
		endpoint:  endpoint,
		apiKey:    cfg.APIKey,
		collector: collector,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestURL returns the lookup URL for symbol with the upc parameter escaped.
func (c *Client) RequestURL(symbol string) string {
	return c.endpoint + "?" + url.Values{"upc": []string{symbol}}.Encode()
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// Lookup resolves symbol to the first matching product. A nil record with a
// nil error means the API returned no items.
func (c *Client) Lookup(ctx context.Context, symbol string) (*models.ProductRecord, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := c.RequestURL(symbol)
	start := time.Now()

	done := make(chan fetchResult, 1)
	go func() {
		done <- c.fetch(ctx, target)
	}()

	var res fetchResult
	select {
	case <-ctx.Done():
		// The request is abandoned; the collector timeout bounds it.
		c.logger.Debug("lookup abandoned", slog.String("symbol", symbol), slog.Any("error", ctx.Err()))
		return nil, ctx.Err()
	case res = <-done:
	}
	c.metrics.ObserveDuration(time.Since(start))

	record, err := c.resolve(symbol, res)
	if err != nil {
		label := ErrorLabel(err)
		c.metrics.IncLookup("error")
		c.metrics.IncError(label)
		c.logger.Error("lookup failed",
			slog.String("symbol", symbol),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return nil, err
	}
	if record == nil {
		c.metrics.IncLookup("no_match")
		c.logger.Info("lookup returned no items", slog.String("symbol", symbol))
		return nil, nil
	}
	c.metrics.IncLookup("match")
	c.logger.Debug("lookup matched",
		slog.String("symbol", symbol),
		slog.String("ean", record.EAN),
		slog.Int("offers", len(record.Offers)),
	)
	return record, nil
}

func (c *Client) fetch(ctx context.Context, target string) fetchResult {
	collector := c.collector.Clone()
	var res fetchResult

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "application/json")
		if c.apiKey != "" {
			r.Headers.Set("user_key", c.apiKey)
			r.Headers.Set("key_type", "3scale")
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		res.body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.status = r.StatusCode
			res.body = r.Body
		}
	})

	if err := collector.Visit(target); err != nil {
		res.err = err
	}
	if res.err == nil && res.status == 0 && ctx.Err() != nil {
		res.err = ctx.Err()
	}
	return res
}

func (c *Client) resolve(symbol string, res fetchResult) (*models.ProductRecord, error) {
	if res.err != nil || res.status < 200 || res.status > 299 {
		if len(res.body) > 0 {
			c.logger.Debug("lookup error body", slog.String("symbol", symbol), slog.String("body", truncate(res.body)))
		}
		cause := res.err
		if cause == nil {
			cause = errors.Errorf("unexpected status %d", res.status)
		}
		return nil, &NetworkError{StatusCode: res.status, Err: cause}
	}

	resp, err := parser.DecodeResponse(res.body)
	if err != nil {
		c.logger.Debug("undecodable lookup body", slog.String("symbol", symbol), slog.String("body", truncate(res.body)))
		return nil, &DecodeError{Err: err}
	}
	if resp.Message != nil && *resp.Message != "" {
		c.logger.Debug("lookup api message", slog.String("code", resp.Code), slog.String("message", *resp.Message))
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	record := resp.Items[0]
	return &record, nil
}

func truncate(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return string(body[:maxLoggedBody]) + "..."
}
