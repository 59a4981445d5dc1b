package source

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

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
)

// Backend talks to the managed backend's PostgREST-style API. It carries the
// service API key on every call; a per-call bearer token (the acting user's)
// is attached when provided.
type Backend struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

func NewBackend(baseURL, apiKey string, client *http.Client) (*Backend, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{base: u, apiKey: apiKey, http: client}, nil
}

// Select issues GET /rest/v1/<table>?<query> and returns the raw JSON array.
func (b *Backend) Select(ctx context.Context, table string, query url.Values) ([]byte, error) {
	return b.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, "", nil)
}

// RPC issues POST /rest/v1/rpc/<fn> with a JSON argument object.
func (b *Backend) RPC(ctx context.Context, fn string, args any) ([]byte, error) {
	return b.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, "", nil)
}

// Insert issues POST /rest/v1/<table> returning the created representation.
func (b *Backend) Insert(ctx context.Context, token, table string, row any) ([]byte, error) {
	hdr := http.Header{"Prefer": []string{"return=representation"}}
	return b.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, token, hdr)
}

// Update issues PATCH /rest/v1/<table>?<match> returning the updated
// representation. A non-matching predicate yields an empty array, not an
// error; callers decide what that means.
func (b *Backend) Update(ctx context.Context, token, table string, match url.Values, patch any) ([]byte, error) {
	hdr := http.Header{"Prefer": []string{"return=representation"}}
	return b.do(ctx, http.MethodPatch, "/rest/v1/"+table, match, patch, token, hdr)
}

// AuthUser fetches the identity behind a bearer token via /auth/v1/user.
func (b *Backend) AuthUser(ctx context.Context, token string) ([]byte, error) {
	return b.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, token, nil)
}

func (b *Backend) do(ctx context.Context, method, path string, query url.Values, body any, token string, extra http.Header) ([]byte, error) {
	u := *b.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("apikey", b.apiKey)
	}
	bearer := token
	if bearer == "" {
		bearer = b.apiKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := b.http.Do(req)
	observability.ObserveUpstreamLatency("backend", time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "backend request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "read backend response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(resp.StatusCode, raw)
	}
	return raw, nil
}

// classify maps backend status codes onto the error taxonomy. Anything not
// recognisably a caller problem is treated as transient so read paths can
// fall back.
func classify(status int, body []byte) error {
	msg := backendMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return apperr.Newf(apperr.KindAuthRequired, "backend rejected credentials: %s", msg)
	case http.StatusForbidden:
		return apperr.Newf(apperr.KindForbidden, "backend denied access: %s", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return apperr.Newf(apperr.KindValidation, "backend rejected payload: %s", msg)
	default:
		return apperr.Newf(apperr.KindTransient, "backend status %d: %s", status, msg)
	}
}

func backendMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}
