package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Complete(t *testing.T) {
	var gotAuth string
	var gotReq completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "test-model", time.Second)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "hello back" {
		t.Fatalf("reply = %q", reply)
	}
	if gotAuth != "Bearer key-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestClient_CompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Messages[0].Content {
		case "api-error":
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "rate limited upstream"},
			})
		case "no-choices":
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "", time.Second)
	ctx := context.Background()

	_, err := c.Complete(ctx, []Message{{Role: RoleUser, Content: "api-error"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited upstream") {
		t.Fatalf("api error not surfaced: %v", err)
	}

	if _, err := c.Complete(ctx, []Message{{Role: RoleUser, Content: "no-choices"}}); err != ErrNoChoices {
		t.Fatalf("want ErrNoChoices, got %v", err)
	}

	empty := NewClient("", srv.URL, "", time.Second)
	if _, err := empty.Complete(ctx, []Message{{Role: RoleUser, Content: "x"}}); err == nil {
		t.Fatalf("empty api key accepted")
	}
}
