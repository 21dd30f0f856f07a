package backend

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

	"mortgage-criteria-chat/internal/domain"
)

const DefaultBaseURL = "http://localhost:8000"

// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
var ErrMalformedResponse = errors.New("backend: malformed response")

// ChatRequest is the request body of POST /chat.
type ChatRequest struct {
	Messages     []domain.ChatTurn `json:"messages"`
	Query        string            `json:"query"`
	LenderFilter string            `json:"lender_filter,omitempty"`
	NumResults   int               `json:"num_results,omitempty"`
}

// ChatResponse is the body of a 2xx POST /chat reply. Error is set when the
// backend reports an application-level failure despite the status.
type ChatResponse struct {
	Response      string                    `json:"response"`
	SearchResults []domain.SupportingResult `json:"search_results"`
	Error         string                    `json:"error,omitempty"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type chatResponseBody struct {
	Response      *string                   `json:"response"`
	SearchResults []domain.SupportingResult `json:"search_results"`
	Error         string                    `json:"error"`
}

// errorBody covers both the {error} shape and FastAPI's {detail} shape.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// HTTPStatusError captures non-2xx backend responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	// Message is the error text the backend embedded in Body, if any.
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("backend: unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the retrieval/generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the backend at baseURL. An empty baseURL
// selects DefaultBaseURL. The default HTTP client sets no timeout, so a chat
// round trip lasts as long as the transport allows.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// Chat sends one chat request. Non-2xx statuses return *HTTPStatusError and
// undecodable bodies wrap ErrMalformedResponse; any other error is a transport
// failure. An application-level error in a 2xx body is returned in
// ChatResponse.Error, not as an error.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	if in.Messages == nil {
		in.Messages = []domain.ChatTurn{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: marshal chat request: %w", err)
	}

	target := c.endpoint("/chat")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, target)
	if err != nil {
		return ChatResponse{}, err
	}

	var payload chatResponseBody
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return ChatResponse{}, fmt.Errorf("%w: decode chat response: %v", ErrMalformedResponse, decErr)
	}
	if payload.Error != "" {
		return ChatResponse{Error: payload.Error}, nil
	}
	if payload.Response == nil {
		return ChatResponse{}, fmt.Errorf("%w: chat response has no response field", ErrMalformedResponse)
	}
	results := payload.SearchResults
	if results == nil {
		results = []domain.SupportingResult{}
	}
	return ChatResponse{Response: *payload.Response, SearchResults: results}, nil
}

// LenderConfig fetches the raw lender configuration document from GET /lenders.
func (c *Client) LenderConfig(ctx context.Context) ([]byte, error) {
	target := c.endpoint("/lenders")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: create lenders request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSONRequest(req, target)
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	target := c.endpoint("/health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("backend: create health request: %w", err)
	}
	raw, err := c.doJSONRequest(req, target)
	if err != nil {
		return HealthStatus{}, err
	}
	var out HealthStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return HealthStatus{}, fmt.Errorf("%w: decode health response: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

func (c *Client) doJSONRequest(req *http.Request, target string) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
			Message:    embeddedErrorMessage(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read response body: %w", err)
	}
	return buf, nil
}

func embeddedErrorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Detail
}
