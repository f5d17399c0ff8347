// Package canvas is a thin client for the Canvas LMS REST API.
package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/config"
	"go.uber.org/zap"
)

const perPage = "100"

// Client talks to one Canvas instance with an admin token. Calls made through
// a client returned by As are performed on behalf of that user.
type Client struct {
	baseURL    string
	token      string
	accountID  int64
	asUserID   int64
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client. The base URL may be given with or without /api/v1.
func New(cfg config.CanvasConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.URL, "/")
	base = strings.TrimSuffix(base, "/api/v1")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   base,
		token:     cfg.Token,
		accountID: cfg.AccountID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// As returns a copy of the client that masquerades as userID. Zero clears it.
func (c *Client) As(userID int64) *Client {
	clone := *c
	clone.asUserID = userID
	return &clone
}

// ActingUser is the masqueraded user id, or zero for the token owner.
func (c *Client) ActingUser() int64 { return c.asUserID }

func (c *Client) AccountID() int64 { return c.accountID }

func (c *Client) Configured() bool { return c.baseURL != "" && c.token != "" }

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.asUserID != 0 && query.Get("as_user_id") == "" {
		query.Set("as_user_id", fmt.Sprint(c.asUserID))
	}
	u := c.baseURL + "/api/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Request, error) {
	if !c.Configured() {
		return nil, apperr.New(apperr.KindUpstreamError, "Canvas is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and decodes a JSON body into out (when out is non-nil). It
// returns the response so callers can read pagination links.
func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if apperr.IsTimeout(err) {
			return nil, apperr.Wrap(apperr.KindUpstreamTimeout, err, "Canvas did not respond in time")
		}
		return nil, apperr.Wrap(apperr.KindUpstreamError, err, "Canvas request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamError, err, "failed to read Canvas response")
	}

	c.logger.Debug("canvas request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 300 {
		return resp, statusError(resp.StatusCode, body)
	}
	if out != nil {
		if err := jsonUnmarshal(body, out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func jsonUnmarshal(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.KindUpstreamError, err, "Canvas returned an unexpected response")
	}
	return nil
}

type errorBody struct {
	Errors  json.RawMessage `json:"errors"`
	Message string          `json:"message"`
}

// statusError maps a Canvas status code onto the error taxonomy, keeping the
// first Canvas error message when there is one.
func statusError(status int, body []byte) error {
	detail := errorDetail(body)
	cause := fmt.Errorf("canvas returned status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusNotFound:
		return apperr.Wrap(apperr.KindNotFound, cause, "%s", orDefault(detail, "The requested Canvas resource was not found"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(apperr.KindPermissionDenied, cause, "%s", orDefault(detail, "Canvas refused access to this resource"))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.KindValidation, cause, "%s", orDefault(detail, "Canvas rejected the request"))
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return apperr.Wrap(apperr.KindUpstreamTimeout, cause, "Canvas did not respond in time")
	default:
		return apperr.Wrap(apperr.KindUpstreamError, cause, "Canvas returned an error (status %d)", status)
	}
}

func errorDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	// errors is either [{"message": ...}] or {"field": [{"message": ...}]}
	var list []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Errors, &list); err == nil && len(list) > 0 {
		return list[0].Message
	}
	var fields map[string][]struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Errors, &fields); err == nil {
		for field, errs := range fields {
			if len(errs) > 0 {
				return field + ": " + errs[0].Message
			}
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(path, query), nil, "")
	if err != nil {
		return err
	}
	_, err = c.do(req, out)
	return err
}

// getList follows Link rel="next" headers until every page is read.
func getList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", perPage)
	next := c.endpoint(path, query)

	items := make([]T, 0)
	for next != "" {
		req, err := c.newRequest(ctx, http.MethodGet, next, nil, "")
		if err != nil {
			return nil, err
		}
		var page []T
		resp, err := c.do(req, &page)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		next = nextLink(resp.Header.Get("Link"))
	}
	return items, nil
}

// nextLink extracts the rel="next" URL from an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, param := range segments[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target
			}
		}
	}
	return ""
}

func (c *Client) send(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	contentType := ""
	if form != nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	req, err := c.newRequest(ctx, method, c.endpoint(path, nil), body, contentType)
	if err != nil {
		return err
	}
	_, err = c.do(req, out)
	return err
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	return c.send(ctx, http.MethodPost, path, form, out)
}

func (c *Client) put(ctx context.Context, path string, form url.Values, out any) error {
	return c.send(ctx, http.MethodPut, path, form, out)
}

func (c *Client) delete(ctx context.Context, path string, form url.Values, out any) error {
	return c.send(ctx, http.MethodDelete, path, form, out)
}
