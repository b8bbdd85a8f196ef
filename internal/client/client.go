// Package client is a Go client for the negotiation API and a feed poller
// built on it.
package client

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

	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" && e.Detail != msg {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, msg, e.Detail)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1". token is the bearer access token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do sends a request and decodes the envelope's data into out. A 304 returns
// (304, nil) with out untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any, header http.Header) (int, http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, resp.Header, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			return resp.StatusCode, resp.Header, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(raw))
		}
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, resp.Header, &APIError{StatusCode: resp.StatusCode, Message: env.Message, Detail: env.Error}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return resp.StatusCode, resp.Header, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, resp.Header, nil
}

// GetRequest fetches a request and normalizes its loosely shaped record.
func (c *Client) GetRequest(ctx context.Context, requestID string) (*models.ProjectRequest, error) {
	var raw map[string]any
	if _, _, err := c.do(ctx, http.MethodGet, "/projects/request/"+url.PathEscape(requestID), nil, &raw, nil); err != nil {
		return nil, err
	}
	req := negotiation.NormalizeRequest(raw)
	return &req, nil
}

// Feed is one fetch of a request's message feed.
type Feed struct {
	Messages    []models.NegotiationMessage
	Version     int64
	ETag        string
	NotModified bool
}

// LastID returns the id of the newest message, "" for an empty feed.
func (f *Feed) LastID() string {
	if f == nil || len(f.Messages) == 0 {
		return ""
	}
	return f.Messages[len(f.Messages)-1].ID
}

type FeedOptions struct {
	// After limits the feed to messages newer than this id.
	After string
	// ETag from a previous fetch; an unchanged feed answers NotModified.
	ETag string
}

func (c *Client) GetNegotiationMessages(ctx context.Context, requestID string, opts FeedOptions) (*Feed, error) {
	path := "/projects/" + url.PathEscape(requestID) + "/messages"
	if opts.After != "" {
		path += "?after=" + url.QueryEscape(opts.After)
	}
	header := http.Header{}
	if opts.ETag != "" {
		header.Set("If-None-Match", opts.ETag)
	}

	var data struct {
		Messages []map[string]any `json:"messages"`
		Version  json.Number      `json:"version"`
	}
	status, respHeader, err := c.do(ctx, http.MethodGet, path, nil, &data, header)
	if err != nil {
		return nil, err
	}

	feed := &Feed{ETag: respHeader.Get("ETag")}
	if status == http.StatusNotModified {
		feed.NotModified = true
		if feed.ETag == "" {
			feed.ETag = opts.ETag
		}
		return feed, nil
	}
	feed.Version, _ = data.Version.Int64()
	feed.Messages = make([]models.NegotiationMessage, 0, len(data.Messages))
	for _, raw := range data.Messages {
		feed.Messages = append(feed.Messages, negotiation.NormalizeMessage(raw))
	}
	return feed, nil
}

type messageBody struct {
	Type         models.MessageType `json:"type"`
	Message      string             `json:"message,omitempty"`
	Price        *int64             `json:"price,omitempty"`
	Deliverables string             `json:"deliverables,omitempty"`
}

func (c *Client) postMessage(ctx context.Context, requestID string, body messageBody) (*models.NegotiationMessage, error) {
	var raw map[string]any
	if _, _, err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(requestID)+"/messages", body, &raw, nil); err != nil {
		return nil, err
	}
	msg := negotiation.NormalizeMessage(raw)
	return &msg, nil
}

// SendNegotiationMessage posts a text message. Contact details are rejected
// locally before the request is sent; the server enforces the same rule.
func (c *Client) SendNegotiationMessage(ctx context.Context, requestID, text string) (*models.NegotiationMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, negotiation.ErrEmptyMessage
	}
	if err := negotiation.ValidateMessage(text); err != nil {
		return nil, err
	}
	return c.postMessage(ctx, requestID, messageBody{Type: models.MessageText, Message: text})
}

// MakeOffer posts an opening offer.
func (c *Client) MakeOffer(ctx context.Context, requestID string, price int64, deliverables, message string) (*models.NegotiationMessage, error) {
	return c.offer(ctx, requestID, models.MessageOffer, price, deliverables, message)
}

// CounterOffer posts a counter to the other party's latest offer.
func (c *Client) CounterOffer(ctx context.Context, requestID string, price int64, deliverables, message string) (*models.NegotiationMessage, error) {
	return c.offer(ctx, requestID, models.MessageCounter, price, deliverables, message)
}

func (c *Client) offer(ctx context.Context, requestID string, t models.MessageType, price int64, deliverables, message string) (*models.NegotiationMessage, error) {
	deliverables = strings.TrimSpace(deliverables)
	if err := negotiation.ValidateOffer(price, deliverables); err != nil {
		return nil, err
	}
	for _, field := range []string{message, deliverables} {
		if err := negotiation.ValidateMessage(field); err != nil {
			return nil, err
		}
	}
	return c.postMessage(ctx, requestID, messageBody{Type: t, Message: strings.TrimSpace(message), Price: &price, Deliverables: deliverables})
}

// AcceptOffer accepts the other party's latest offer. price and deliverables
// are optional; when given, the server rejects them unless they match.
func (c *Client) AcceptOffer(ctx context.Context, requestID string, price *int64, deliverables string) (*models.NegotiationMessage, error) {
	return c.postMessage(ctx, requestID, messageBody{
		Type:         models.MessageAccepted,
		Message:      "Offer accepted",
		Price:        price,
		Deliverables: strings.TrimSpace(deliverables),
	})
}

type RespondResult struct {
	Request  models.ProjectRequest
	ChatPath string
}

// UpdateRequestStatus applies a creator action to a pending request.
func (c *Client) UpdateRequestStatus(ctx context.Context, requestID string, action negotiation.Action, message string) (*RespondResult, error) {
	body := map[string]string{"action": string(action)}
	if message != "" {
		body["message"] = message
	}
	var data struct {
		Request  map[string]any `json:"request"`
		ChatPath string         `json:"chatPath"`
	}
	if _, _, err := c.do(ctx, http.MethodPost, "/project-request/"+url.PathEscape(requestID)+"/respond", body, &data, nil); err != nil {
		return nil, err
	}
	return &RespondResult{Request: negotiation.NormalizeRequest(data.Request), ChatPath: data.ChatPath}, nil
}

// noPaymentMessage is the server's 404 message for a request that exists but
// has no payment yet. Any other 404 (an unknown request) stays an error.
const noPaymentMessage = "No payment for this request yet"

// GetPaymentStatusByRequest returns the latest payment for a request, or
// (nil, nil) when the request has none yet.
func (c *Client) GetPaymentStatusByRequest(ctx context.Context, requestID string) (*models.Payment, error) {
	var p models.Payment
	_, _, err := c.do(ctx, http.MethodGet, "/escrow/"+url.PathEscape(requestID)+"/status", nil, &p, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound && apiErr.Message == noPaymentMessage {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Negotiation is the server's view of a negotiation for the caller.
type Negotiation struct {
	Viewer           models.Sender        `json:"viewer"`
	Status           models.RequestStatus `json:"status"`
	CurrentOffer     *models.Offer        `json:"currentOffer"`
	LatestOffer      *models.Offer        `json:"latestOffer"`
	AcceptedOffer    *models.Offer        `json:"acceptedOffer"`
	Pricing          negotiation.Pricing  `json:"pricing"`
	AvailableActions []negotiation.Action `json:"availableActions"`
	MessageCount     int                  `json:"messageCount"`
	LastMessageID    string               `json:"lastMessageId"`
}

func (c *Client) GetNegotiation(ctx context.Context, requestID string) (*Negotiation, error) {
	var n Negotiation
	if _, _, err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(requestID)+"/negotiation", nil, &n, nil); err != nil {
		return nil, err
	}
	return &n, nil
}
