package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestParseTimestamp(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotPrompt = req.Messages[0].Content
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"found":true,"local":"2026-06-02 09:00","reason":""}`))
	}))
	defer srv.Close()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	c := New("key", srv.URL+"/v1", "test")
	now := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	got, err := c.ParseTimestamp(context.Background(), "tomorrow morning", now, tokyo)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 6, 2, 9, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
	if !strings.Contains(gotPrompt, "2026-06-01 12:00 (Monday)") || !strings.Contains(gotPrompt, "Asia/Tokyo") {
		t.Errorf("prompt missing local time or zone:\n%s", gotPrompt)
	}
}

func TestDecodeTimestamp(t *testing.T) {
	if _, err := decodeTimestamp(`{"found":false,"local":"","reason":"no time given"}`, time.UTC); !errors.Is(err, ErrNoTimestamp) {
		t.Fatalf("err = %v, want ErrNoTimestamp", err)
	}
	if _, err := decodeTimestamp(`not json`, time.UTC); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := decodeTimestamp(`{"found":true,"local":"tomorrow","reason":""}`, time.UTC); err == nil {
		t.Fatal("expected layout error")
	}
}
