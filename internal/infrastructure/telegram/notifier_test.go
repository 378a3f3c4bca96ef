package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishSummary(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("token123", "chat42")
	n.baseURL = srv.URL
	n.client = srv.Client()

	if err := n.PublishSummary(context.Background(), "ingest: 3 orgs, 2 deals"); err != nil {
		t.Fatalf("PublishSummary: %v", err)
	}
	if gotPath != "/bottoken123/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "chat42" {
		t.Errorf("chat_id = %q", gotChat)
	}
	if gotText != "ingest: 3 orgs, 2 deals" {
		t.Errorf("text = %q", gotText)
	}
}

func TestPublishSummaryMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.PublishSummary(context.Background(), "anything"); err == nil {
		t.Fatal("expected error when token and chat are unset")
	}
}

func TestPublishSummaryAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "chat")
	n.baseURL = srv.URL
	n.client = srv.Client()

	if err := n.PublishSummary(context.Background(), "anything"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
