package lookup

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-barcode-lookup/config"
	"github.com/aluiziolira/go-barcode-lookup/metrics"
)

const (
	testBaseURL  = "https://api.upcitemdb.test/prod/trial"
	testEndpoint = testBaseURL + "/lookup"
)

const twoItemsBody = `{"code":"OK","total":2,"offset":0,"items":[
{"ean":"0885909950805","title":"First","description":"","brand":"A","model":"","color":"","size":"","weight":"","offers":[{"merchant":"Shop","domain":"shop.com","title":"First","price":10,"shipping":"","condition":"New","link":"http://shop.com/1","updated_t":1}]},
{"ean":"0885909950806","title":"Second","description":"","brand":"B","model":"","color":"","size":"","weight":""}]}`

type recordedRequest struct {
	calls int32
	last  atomic.Pointer[http.Request]
}

func newTestClient(t *testing.T, status int, body string, opts ...Option) (*Client, *recordedRequest) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL

	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)

	rec := &recordedRequest{}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&rec.calls, 1)
		rec.last.Store(req)
		return httpmock.NewStringResponse(status, body), nil
	})
	client.collector.WithTransport(transport)
	return client, rec
}

func TestLookupReturnsFirstItem(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, twoItemsBody)

	for i := 0; i < 3; i++ {
		record, err := client.Lookup(context.Background(), "0885909950805")
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, "First", record.Title)
		require.Len(t, record.Offers, 1)
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&rec.calls), "every lookup is one round trip")
}

func TestLookupEscapesSymbol(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"code":"OK","total":0,"offset":0,"items":[]}`)

	symbol := "https://qr.example/p?id=7&x=a b"
	_, err := client.Lookup(context.Background(), symbol)
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&rec.calls))
	req := rec.last.Load()
	require.NotNil(t, req)
	require.Equal(t, symbol, req.URL.Query().Get("upc"))
	require.Equal(t, "upc=https%3A%2F%2Fqr.example%2Fp%3Fid%3D7%26x%3Da+b", req.URL.RawQuery)
	require.Equal(t, "application/json", req.Header.Get("Accept"))
	require.Empty(t, req.Header.Get("user_key"))
}

func TestLookupNoMatch(t *testing.T) {
	m := metrics.New()
	client, rec := newTestClient(t, http.StatusOK, `{"code":"OK","total":0,"offset":0,"items":[]}`, WithMetrics(m))

	record, err := client.Lookup(context.Background(), "000000000000")
	require.NoError(t, err)
	require.Nil(t, record)
	require.Equal(t, int32(1), atomic.LoadInt32(&rec.calls))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("no_match")))
}

func TestLookupHTTPStatusFailures(t *testing.T) {
	tests := []struct {
		status int
		label  string
	}{
		{status: http.StatusInternalServerError, label: "server"},
		{status: http.StatusBadGateway, label: "server"},
		{status: http.StatusTooManyRequests, label: "rate_limited"},
		{status: http.StatusNotFound, label: "not_found"},
		{status: http.StatusBadRequest, label: "status"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			m := metrics.New()
			client, _ := newTestClient(t, tt.status, `{"code":"ERR","message":"nope"}`, WithMetrics(m))

			record, err := client.Lookup(context.Background(), "012345678905")
			require.Nil(t, record)

			var netErr *NetworkError
			require.ErrorAs(t, err, &netErr)
			require.Equal(t, tt.status, netErr.StatusCode)
			require.Equal(t, tt.label, ErrorLabel(err))
			require.Equal(t, 1.0, testutil.ToFloat64(m.LookupErrorsTotal.WithLabelValues(tt.label)))
			require.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("error")))
		})
	}
}

func TestLookupConnectionFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	client, err := NewClient(cfg)
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, httpmock.NewErrorResponder(
		&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	))
	client.collector.WithTransport(transport)

	_, err = client.Lookup(context.Background(), "012345678905")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Zero(t, netErr.StatusCode)
	require.Equal(t, "connection", ErrorLabel(err))
}

func TestLookupMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"code":"OK","items":[{"title":`)

	record, err := client.Lookup(context.Background(), "012345678905")
	require.Nil(t, record)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, "decode", ErrorLabel(err))
	require.NotContains(t, err.Error(), `"title":`, "raw body stays out of the error")
}

func TestLookupNonEnvelopeBody(t *testing.T) {
	for _, body := range []string{"null", "{}", `{"error":"x"}`} {
		t.Run(body, func(t *testing.T) {
			m := metrics.New()
			client, _ := newTestClient(t, http.StatusOK, body, WithMetrics(m))

			record, err := client.Lookup(context.Background(), "012345678905")
			require.Nil(t, record)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr, "a body without code and items is not a no-match")
			require.Zero(t, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("no_match")))
			require.Equal(t, 1.0, testutil.ToFloat64(m.LookupErrorsTotal.WithLabelValues("decode")))
		})
	}
}

func TestLookupEmptySymbol(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, twoItemsBody)

	_, err := client.Lookup(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptySymbol)
	require.Zero(t, atomic.LoadInt32(&rec.calls))
}

func TestLookupCancelledContext(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, twoItemsBody)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Lookup(ctx, "012345678905")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "canceled", ErrorLabel(err))
	require.Zero(t, atomic.LoadInt32(&rec.calls))
}

func TestLookupAPIKeyHeaders(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.APIKey = "k-123"
	client, err := NewClient(cfg)
	require.NoError(t, err)

	var got http.Header
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, `{"code":"OK","total":0,"offset":0,"items":[]}`), nil
	})
	client.collector.WithTransport(transport)

	_, err = client.Lookup(context.Background(), "012345678905")
	require.NoError(t, err)
	require.Equal(t, "k-123", got.Get("user_key"))
	require.Equal(t, "3scale", got.Get("key_type"))
	require.Equal(t, cfg.UserAgent, got.Get("User-Agent"))
}

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "bare deadline", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "network deadline", err: &NetworkError{Err: context.DeadlineExceeded}, expected: "timeout"},
		{name: "net timeout", err: &NetworkError{Err: &net.DNSError{IsTimeout: true}}, expected: "timeout"},
		{name: "connection", err: &NetworkError{Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}}, expected: "connection"},
		{name: "forbidden", err: &NetworkError{StatusCode: http.StatusForbidden, Err: errors.New("Forbidden")}, expected: "forbidden"},
		{name: "unauthorized", err: &NetworkError{StatusCode: http.StatusUnauthorized, Err: errors.New("Unauthorized")}, expected: "forbidden"},
		{name: "decode", err: &DecodeError{Err: errors.New("bad json")}, expected: "decode"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
		{name: "network other", err: &NetworkError{Err: errors.New("reset")}, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ErrorLabel(tt.err))
		})
	}
}
