package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mortgage-criteria-chat/internal/domain"
)

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c, err := NewClient("  ")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", c.BaseURL())
	require.NotNil(t, c.httpClient)
	require.Zero(t, c.httpClient.Timeout)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("https://criteria.example.com/")
	require.NoError(t, err)
	require.Equal(t, "https://criteria.example.com", c.BaseURL())
	require.Equal(t, "https://criteria.example.com/chat", c.endpoint("/chat"))
}

func TestNewClient_RejectsNonHTTPScheme(t *testing.T) {
	_, err := NewClient("ftp://criteria.example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "http or https")
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"response": "HSBC accepts applicants up to age 70.",
			"search_results": [{
				"text": "Maximum age at end of term is 70.",
				"metadata": {"lender_name": "HSBC", "criteria_section": "Age", "filename": "hsbc.txt", "chunk_index": 3},
				"score": 0.42
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages:     []domain.ChatTurn{domain.UserTurn("max age?")},
		Query:        "max age?",
		LenderFilter: "HSBC",
		NumResults:   15,
	})
	require.NoError(t, err)
	require.Equal(t, "HSBC accepts applicants up to age 70.", resp.Response)
	require.Empty(t, resp.Error)
	require.Len(t, resp.SearchResults, 1)

	r := resp.SearchResults[0]
	require.Equal(t, "HSBC", r.Metadata.LenderName)
	require.Equal(t, "Age", r.Metadata.CriteriaSection)
	require.Equal(t, "hsbc.txt", r.Metadata.SourceFilename)
	require.NotNil(t, r.Metadata.ChunkIndex)
	require.Equal(t, 3, *r.Metadata.ChunkIndex)
	require.NotNil(t, r.RelevanceScore)
	require.InDelta(t, 0.42, *r.RelevanceScore, 1e-9)

	require.Equal(t, "max age?", got["query"])
	require.Equal(t, "HSBC", got["lender_filter"])
	require.EqualValues(t, 15, got["num_results"])
	require.Equal(t, []any{map[string]any{"role": "user", "content": "max age?"}}, got["messages"])
}

func TestClient_Chat_OmitsEmptyFilter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok","search_results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Query: "q", NumResults: 5})
	require.NoError(t, err)
	require.NotContains(t, got, "lender_filter")
	require.Equal(t, []any{}, got["messages"])
}

func TestClient_Chat_MissingOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"No relevant criteria found.","search_results":[{"text":"t","metadata":{"lender_name":"Halifax","criteria_section":"LTV","filename":"halifax.txt"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.SearchResults, 1)
	require.Nil(t, resp.SearchResults[0].Metadata.ChunkIndex)
	require.Nil(t, resp.SearchResults[0].RelevanceScore)
}

func TestClient_Chat_NullSearchResultsBecomeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"X"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.NoError(t, err)
	require.NotNil(t, resp.SearchResults)
	require.Empty(t, resp.SearchResults)
}

func TestClient_Chat_ApplicationErrorOnSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Failed to generate chat response: index offline"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.NoError(t, err)
	require.Equal(t, "Failed to generate chat response: index offline", resp.Error)
}

func TestClient_Chat_Non2xx(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "error field", status: 500, body: `{"error":"boom"}`, message: "boom"},
		{name: "fastapi detail", status: 500, body: `{"detail":"table missing"}`, message: "table missing"},
		{name: "validation detail list", status: 422, body: `{"detail":[{"msg":"field required"}]}`, message: ""},
		{name: "plain text", status: 502, body: `Bad Gateway`, message: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			_, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
			require.Error(t, err)

			var statusErr *HTTPStatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, tc.status, statusErr.HTTPStatusCode())
			require.Equal(t, tc.message, statusErr.Message)
			require.Equal(t, srv.URL+"/chat", statusErr.URL)
			require.Contains(t, err.Error(), "unexpected status")
		})
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Contains(t, err.Error(), "decode chat response")
}

func TestClient_Chat_MissingResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"search_results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"late"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMalformedResponse))
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), ChatRequest{Query: "q"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")

	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

// ---------------------------------------------------------------------------
// Client.LenderConfig / Client.Health
// ---------------------------------------------------------------------------

func TestClient_LenderConfig_ReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lenders", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"lenders":["HSBC"]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	raw, err := c.LenderConfig(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"lenders":["HSBC"]}`, string(raw))
}

func TestClient_LenderConfig_500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`{"detail":"lender_config.json not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.LenderConfig(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
	require.Contains(t, err.Error(), "lender_config.json not found")
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","message":"Optimized backend is running"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, HealthStatus{Status: "healthy", Message: "Optimized backend is running"}, h)
}
