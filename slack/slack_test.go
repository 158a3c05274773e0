package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := New(&http.Client{Timeout: 5 * time.Second}, "xoxb-test", logger)
	c.baseURL = srv.URL
	return c
}

func TestOwnIdentity(t *testing.T) {
	var gotAuth string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth.test" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"ok":true,"user_id":"UBOT"}`)
	}))

	id, err := c.OwnIdentity(context.Background())
	if err != nil {
		t.Fatalf("OwnIdentity() error = %v", err)
	}
	if id != "UBOT" {
		t.Errorf("OwnIdentity() = %q, want UBOT", id)
	}
	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOwnIdentityAuthError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"invalid_auth"}`)
	}))

	_, err := c.OwnIdentity(context.Background())
	if err == nil {
		t.Fatal("OwnIdentity() expected error")
	}
	if !IsAuthError(err) {
		t.Errorf("IsAuthError(%v) = false, want true", err)
	}
}

func TestFindChannelPaginates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C1","name":"general"}],"response_metadata":{"next_cursor":"page2"}}`)
		case "page2":
			fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C2","name":"drawma"}],"response_metadata":{"next_cursor":""}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	id, err := c.FindChannel(context.Background(), "#drawma")
	if err != nil {
		t.Fatalf("FindChannel() error = %v", err)
	}
	if id != "C2" {
		t.Errorf("FindChannel() = %q, want C2", id)
	}
}

func TestFindChannelNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C1","name":"general"}]}`)
	}))

	_, err := c.FindChannel(context.Background(), "missing")
	if err != ErrChannelNotFound {
		t.Errorf("FindChannel() error = %v, want ErrChannelNotFound", err)
	}
}

func TestHistoryPaginates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("channel") != "C2" {
			t.Errorf("channel = %q", r.URL.Query().Get("channel"))
		}
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"200.1","text":"newest"}],"has_more":true,"response_metadata":{"next_cursor":"c1"}}`)
		case "c1":
			fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"100.1","text":"oldest"}],"has_more":false}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	msgs, err := c.History(context.Background(), "C2", "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("History() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Timestamp != "200.1" || msgs[1].Timestamp != "100.1" {
		t.Errorf("History() order wrong: %s, %s", msgs[0].Timestamp, msgs[1].Timestamp)
	}
}

func TestHistoryWindowedStopsAtBound(t *testing.T) {
	requests := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("oldest") != "150" {
			t.Errorf("oldest = %q, want 150", r.URL.Query().Get("oldest"))
		}
		// A page that straddles the bound: the client must keep the
		// in-window record, drop the rest, and stop paging even though
		// the server claims more data.
		fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"200.1"},{"ts":"100.1"}],"has_more":true,"response_metadata":{"next_cursor":"c1"}}`)
	}))

	msgs, err := c.History(context.Background(), "C2", "150")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Timestamp != "200.1" {
		t.Errorf("History() = %+v, want just ts 200.1", msgs)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
}

func TestRepliesDropsParent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.replies" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ts") != "200.1" {
			t.Errorf("ts = %q", r.URL.Query().Get("ts"))
		}
		fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"200.1","text":"parent"},{"ts":"201.5","text":"reply"}],"has_more":false}`)
	}))

	msgs, err := c.Replies(context.Background(), "C2", "200.1")
	if err != nil {
		t.Fatalf("Replies() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "reply" {
		t.Errorf("Replies() = %+v, want only the reply", msgs)
	}
}

func TestRepliesEmptyThread(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":true,"messages":[],"has_more":false}`)
	}))

	msgs, err := c.Replies(context.Background(), "C2", "200.1")
	if err != nil {
		t.Fatalf("Replies() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Replies() = %+v, want empty", msgs)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "display name preferred",
			body: `{"ok":true,"user":{"profile":{"display_name":"ada","real_name":"Ada L"}}}`,
			want: "ada",
		},
		{
			name: "real name fallback",
			body: `{"ok":true,"user":{"profile":{"display_name":"","real_name":"Ada L"}}}`,
			want: "Ada L",
		},
		{
			name: "raw id fallback",
			body: `{"ok":true,"user":{"profile":{}}}`,
			want: "U123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("user") != "U123" {
					t.Errorf("user = %q", r.URL.Query().Get("user"))
				}
				fmt.Fprint(w, tt.body)
			}))

			got, err := c.DisplayName(context.Background(), "U123")
			if err != nil {
				t.Fatalf("DisplayName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayNameUserNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"user_not_found"}`)
	}))

	_, err := c.DisplayName(context.Background(), "UGONE")
	if !IsUserNotFound(err) {
		t.Errorf("IsUserNotFound(%v) = false, want true", err)
	}
	if IsAuthError(err) {
		t.Error("user_not_found misclassified as auth error")
	}
}

func TestCallHTTPError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.OwnIdentity(context.Background())
	if err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}
