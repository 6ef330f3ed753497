// Package api is the REST client for the shop-floor backend. It speaks the
// backend's response envelope and attaches whichever credentials the session
// currently holds; authorization itself is always enforced server-side.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Credentials exposes the session's current credentials to the client. Each
// one is optional: an absent credential simply omits its header rather than
// failing the request client-side.
type Credentials interface {
	AuthToken() *oauth2.Token
	ExtrasToken() string
	AdminKey() string
}

// Client issues JSON requests against the backend and decodes the
// {ok, data, error} envelope. Failures come back as *Error.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	log     zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(baseURL string, creds Credentials, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	if creds == nil {
		return nil, errors.New("[NewClient] credentials are required")
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		creds:   creds,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Get issues a GET and decodes the envelope's data into out (out may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "[Client.Get] build request")
	}
	return c.do(req, out)
}

// Post marshals body (nil sends an empty JSON object) and decodes the
// envelope's data into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	raw := []byte("{}")
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.Post] marshal body")
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "[Client.Post] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// GetRaw fetches a non-envelope resource (e.g. a CSV export) and returns the
// body bytes.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GetRaw] build request")
	}
	c.attachCredentials(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(res.Body)
		return nil, envelopeError(res.StatusCode, payload, res.Header.Get("Content-Type"))
	}
	return io.ReadAll(res.Body)
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (c *Client) do(req *http.Request, out any) error {
	c.attachCredentials(req)
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	res, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("request_id", requestID).Str("path", req.URL.Path).Msg("request failed")
		return networkError(err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return networkError(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := envelopeError(res.StatusCode, payload, res.Header.Get("Content-Type"))
		c.log.Debug().Str("request_id", requestID).Str("path", req.URL.Path).
			Int("status", res.StatusCode).Str("code", apiErr.Code).Msg("backend error")
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return networkError(errors.Wrap(err, "decode envelope"))
	}
	if !env.OK {
		return envelopeErrorFrom(res.StatusCode, env.Error, msgInvalidRequest)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return networkError(errors.Wrap(err, "decode data"))
	}
	return nil
}

func (c *Client) attachCredentials(req *http.Request) {
	if token := c.creds.AuthToken(); token != nil && token.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}
	if extras := c.creds.ExtrasToken(); extras != "" {
		req.Header.Set("X-Extras-Token", extras)
	}
	if key := c.creds.AdminKey(); key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
}

func envelopeError(status int, payload []byte, contentType string) *Error {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/json" {
		var env envelope
		if err := json.Unmarshal(payload, &env); err == nil {
			return envelopeErrorFrom(status, env.Error, msgNetworkError)
		}
	}
	return &Error{Status: status, Message: msgNetworkError}
}

func envelopeErrorFrom(status int, payload *errorPayload, fallback string) *Error {
	apiErr := &Error{Status: status, Message: fallback}
	if payload != nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			apiErr.Message = msg
		}
		apiErr.Code = payload.Code
		apiErr.Fields = payload.Fields
	}
	return apiErr
}
