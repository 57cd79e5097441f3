package research

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAsk(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer pplx-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "ETF inflows rose 12%."}}],
			"citations": ["https://example.com/a", "https://example.com/b"]
		}`))
	}))
	defer server.Close()

	c := NewClient("pplx-key", WithURL(server.URL), WithModel("sonar"), WithHTTPClient(server.Client()))
	ans := c.Ask(context.Background(), "Bitcoin ETF inflows?")

	if !ans.OK() {
		t.Fatalf("Ask failed: %s", ans.Error)
	}
	if ans.Query != "Bitcoin ETF inflows?" || ans.Answer != "ETF inflows rose 12%." {
		t.Errorf("answer = %+v", ans)
	}
	if len(ans.Citations) != 2 {
		t.Errorf("Citations = %v", ans.Citations)
	}

	if got.Model != "sonar" || got.MaxTokens != 1024 || got.Temperature != 0.2 || !got.ReturnCitations {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Bitcoin ETF inflows?" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestAskAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key\n"))
	}))
	defer server.Close()

	c := NewClient("bad", WithURL(server.URL), WithHTTPClient(server.Client()))

	_, err := c.ask(context.Background(), "q")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want *APIError 401", err)
	}

	ans := c.Ask(context.Background(), "q")
	if ans.OK() {
		t.Fatal("expected failed answer")
	}
	if ans.Error != "research api error (401): invalid api key" {
		t.Errorf("Error = %q", ans.Error)
	}
	if ans.Citations == nil || ans.Answer != "" {
		t.Errorf("answer = %+v", ans)
	}
}

func TestAskEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	ans := NewClient("k", WithURL(server.URL), WithHTTPClient(server.Client())).Ask(context.Background(), "q")
	if !ans.OK() || ans.Answer != "" || ans.Citations == nil {
		t.Errorf("answer = %+v", ans)
	}
}
