// Package interact uploads a recorded utterance to the conversation backend
// and returns the transcript, the reply text and where to fetch the reply
// audio.
package interact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"jarvis/log"
)

const (
	InteractPath = "/api/interact"
	HealthPath   = "/api/health"

	DefaultFilename = "input.webm"
	DefaultMimeType = "audio/webm"
	FieldName       = "audio"
)

type Result struct {
	UserText string
	AIText   string
	AudioURL string
	Metrics  *NetworkMetrics
}

type Health struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
}

// Ready reports whether the backend and all its components are up.
func (h *Health) Ready() bool {
	if h.Status != "ok" {
		return false
	}
	for _, up := range h.Components {
		if !up {
			return false
		}
	}
	return true
}

type interactResponse struct {
	UserText   *string `json:"user_text"`
	AIResponse *string `json:"ai_response"`
	AudioURL   *string `json:"audio_url"`
}

type Client struct {
	base     *url.URL
	client   *TracedClient
	inFlight atomic.Bool
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	return &Client{base: base, client: NewTracedClient(timeout)}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// ResolveURL makes ref absolute against the backend base URL.
func (c *Client) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(u).String(), nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// Send posts payload as the multipart field "audio". Only one Send may be
// outstanding per client.
func (c *Client) Send(ctx context.Context, payload []byte, filename, mimeType string) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrExchangeInFlight
	}
	defer c.inFlight.Store(false)

	if filename == "" {
		filename = DefaultFilename
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, filename))
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(payload); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(InteractPath), &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Metrics: resp.Metrics}, &ServerError{Status: resp.StatusCode, Detail: detail(resp.Body)}
	}

	var r interactResponse
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		log.Warnf("interact_decode: %v", err)
		return Result{Metrics: resp.Metrics}, &ServerError{Status: resp.StatusCode}
	}

	return Result{
		UserText: deref(r.UserText),
		AIText:   deref(r.AIResponse),
		AudioURL: deref(r.AudioURL),
		Metrics:  resp.Metrics,
	}, nil
}

// Health queries the backend component status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(HealthPath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServerError{Status: resp.StatusCode, Detail: detail(resp.Body)}
	}
	var h Health
	if err := json.Unmarshal(resp.Body, &h); err != nil {
		return nil, &ServerError{Status: resp.StatusCode}
	}
	return &h, nil
}

// Fetch downloads a resource referenced by a result, such as the reply
// audio. Relative references resolve against the backend.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.ResolveURL(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.client.Get(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &ServerError{Status: status, Detail: detail(body)}
	}
	return body, nil
}

func detail(body []byte) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if s, ok := e.Detail.(string); ok {
		return s
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
