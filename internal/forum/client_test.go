package forum

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "missing _t cookie",
			config:  Config{BaseURL: "https://forum.example.com", TCookie: "", Session: "s"},
			wantErr: true,
		},
		{
			name:    "missing session cookie",
			config:  Config{BaseURL: "https://forum.example.com", TCookie: "t", Session: ""},
			wantErr: true,
		},
		{
			name:    "valid config",
			config:  Config{BaseURL: "https://forum.example.com", TCookie: "t", Session: "s"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_VerifyAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/current.json" {
			http.NotFound(w, r)
			return
		}
		cookie, err := r.Cookie("_t")
		if err != nil || cookie.Value != "token123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current_user": {"username": "student42"}}`))
	}))
	defer server.Close()

	client, err := New(Config{
		BaseURL: server.URL,
		TCookie: "token123",
		Session: "abc",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	username, err := client.VerifyAuth(t.Context())
	if err != nil {
		t.Fatalf("VerifyAuth() error = %v", err)
	}
	if username != "student42" {
		t.Errorf("VerifyAuth() username = %q, want %q", username, "student42")
	}
}

func TestClient_VerifyAuth_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, TCookie: "bad", Session: "bad"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.VerifyAuth(t.Context()); err == nil {
		t.Error("VerifyAuth() should fail on non-200 response")
	}
}

func TestClient_Topics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/c/courses/kb/34", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html><body>
				<a class="title" href="/t/week-1-questions/101">Week 1 questions</a>
				<a class="title" href="/t/project-rubric/102">  Project rubric  </a>
				<a href="/t/untitled/103">not a topic link</a>
			</body></html>
		`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := New(Config{
		BaseURL:     server.URL,
		CategoryURL: server.URL + "/c/courses/kb/34",
		TCookie:     "t",
		Session:     "s",
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	topics, err := client.Topics(t.Context())
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}

	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d: %+v", len(topics), topics)
	}
	if topics[0].Title != "Week 1 questions" {
		t.Errorf("first topic title = %q", topics[0].Title)
	}
	if topics[0].URL != server.URL+"/t/week-1-questions/101" {
		t.Errorf("first topic URL = %q", topics[0].URL)
	}
	if topics[1].Title != "Project rubric" {
		t.Errorf("second topic title = %q, want trimmed", topics[1].Title)
	}
}

func TestClient_FetchPage_SendsCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("_forum_session"); err != nil || c.Value != "sess" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("<html><body>topic body</body></html>"))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, TCookie: "t", Session: "sess"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	body, err := client.FetchPage(t.Context(), server.URL+"/t/some-topic/55")
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if body == "" {
		t.Error("FetchPage() returned empty body")
	}
}

func TestClient_FetchPage_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, TCookie: "t", Session: "s"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.FetchPage(t.Context(), server.URL+"/t/missing/1"); err == nil {
		t.Error("FetchPage() should fail on 404")
	}
}
