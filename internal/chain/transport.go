package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// maxResponseBytes bounds a single JSON response body.
const maxResponseBytes = 16 << 20

// RequestObserver is notified after every HTTP round trip.
type RequestObserver interface {
	ObserveRequest(endpoint string, elapsed time.Duration, err error)
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	BaseURL    string
	Name       string // breaker and metrics label, e.g. "indexer"
	HTTPClient *http.Client
	Throttle   *Throttle
	Backoff    Backoff
	Observer   RequestObserver
	UserAgent  string
}

// Transport performs JSON requests against one HTTP API, guarded by a
// per-host throttle, a circuit breaker and retry with backoff.
type Transport struct {
	base     *url.URL
	name     string
	client   *http.Client
	throttle *Throttle
	breaker  *gobreaker.CircuitBreaker
	backoff  Backoff
	observer RequestObserver
	agent    string
}

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// NewTransport validates opts and returns a ready Transport.
func NewTransport(opts TransportOptions) (*Transport, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"url": opts.BaseURL})
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = NewThrottle(5, 10)
	}
	backoff := opts.Backoff
	if backoff.Attempts == 0 {
		backoff = DefaultBackoff()
	}
	name := opts.Name
	if name == "" {
		name = base.Host
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && ratio >= 0.6
		},
	})

	return &Transport{
		base:     base,
		name:     name,
		client:   client,
		throttle: throttle,
		breaker:  breaker,
		backoff:  backoff,
		observer: opts.Observer,
		agent:    opts.UserAgent,
	}, nil
}

// GetJSON fetches path (relative to the base URL) and decodes the body into out.
func (t *Transport) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return t.do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON sends body as JSON to path and decodes the response into out.
func (t *Transport) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return t.do(ctx, http.MethodPost, path, nil, payload, out)
}

func (t *Transport) do(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	endpoint := endpointLabel(path)
	started := time.Now()

	raw, err := Do(ctx, t.backoff, func(ctx context.Context) ([]byte, error) {
		if err := t.throttle.Wait(ctx, t.base.Host); err != nil {
			return nil, err
		}
		res, err := t.breaker.Execute(func() (interface{}, error) {
			return t.roundTrip(ctx, method, path, query, payload)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: %s circuit open", walleterr.ErrNetworkError, t.name)
			}
			return nil, err
		}
		reply := res.(*response) //nolint:forcetypeassert // roundTrip always returns *response
		if reply.status < 200 || reply.status >= 300 {
			return nil, &StatusError{Status: reply.status, Body: truncate(string(reply.body), 256)}
		}
		return reply.body, nil
	})

	if t.observer != nil {
		t.observer.ObserveRequest(t.name+":"+endpoint, time.Since(started), err)
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", walleterr.ErrNetworkError, endpoint, err)
	}
	return nil
}

type response struct {
	status int
	body   []byte
}

// roundTrip counts as a breaker failure only for transport errors and 5xx/429.
func (t *Transport) roundTrip(ctx context.Context, method, path string, query url.Values, payload []byte) (*response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	target := t.base.ResolveReference(ref)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrRetryable, err)
	}
	if transient := ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After")); transient != nil {
		return nil, transient
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// endpointLabel keeps the stable part of a path so metrics labels stay bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 5 {
		parts = parts[:5]
	}
	for i, p := range parts {
		if strings.ContainsAny(p, ",") || len(p) > 24 {
			parts[i] = ":ids"
		}
	}
	return strings.Join(parts, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
