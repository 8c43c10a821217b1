package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestClientLogin_Success(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("expected request id header")
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not send credentials")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"user":{"id":1,"username":"alice","follower_count":2},"tokens":{"access":"a1","refresh":"r1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, zap.NewNop())
	id, err := c.Login(context.Background(), " alice ", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if id.User.Username != "alice" || id.User.FollowerCount != 2 || id.Tokens.Access != "a1" || id.Tokens.Refresh != "r1" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if gotBody["username"] != "alice" || gotBody["password"] != "pw" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestClientLogin_MissingFields(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second, nil)
	_, err := c.Login(context.Background(), "", " ")
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || len(fe.Fields) != 2 || fe.Fields[0] != "password" || fe.Fields[1] != "username" {
		t.Fatalf("unexpected field error %+v", fe)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.URL, time.Second, nil)
		_, err := c.Notifications(context.Background(), "tok")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClientNotifications_SendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/notifications/":
			_, _ = w.Write([]byte(`[{"id":1,"content":"liked","notification_type":"like","created_at":"2024-01-02T03:04:05Z","seen":false},{"id":2,"content":"followed","notification_type":"follow","created_at":"2024-01-02T03:04:05Z","seen":true}]`))
		case "/api/notifications/mark-all-seen/":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	items, err := c.Notifications(context.Background(), "tok")
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(items) != 2 || items[0].NotificationType != "like" || !items[1].Seen {
		t.Fatalf("unexpected notifications %+v", items)
	}
	if err := c.MarkAllNotificationsSeen(context.Background(), "tok"); err != nil {
		t.Fatalf("mark all seen: %v", err)
	}
	if _, err := c.Notifications(context.Background(), "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/api/token/refresh/" || body["refresh"] != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access":"a2"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	pair, err := c.Refresh(context.Background(), "r1")
	if err != nil || pair.Access != "a2" || pair.Refresh != "" {
		t.Fatalf("unexpected refresh result %+v,%v", pair, err)
	}
	if _, err := c.Refresh(context.Background(), ""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestClient_BreakerOpensOnServerFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	for i := 0; i < 5; i++ {
		_, _ = c.User(context.Background(), "tok", 1)
	}
	_, err := c.User(context.Background(), "tok", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with open breaker, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected open breaker to short-circuit, server saw %d calls", calls)
	}
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	for i := 0; i < 8; i++ {
		_, _ = c.Login(context.Background(), "alice", "bad")
	}
	if calls != 8 {
		t.Fatalf("expected every 401 to reach the server, got %d", calls)
	}
}

func TestClientUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/user/7/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"username":"alice","bio":"hi","follower_count":10,"following_count":3,"video_count":5,"heart_count":99}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	u, err := c.User(context.Background(), "tok", 7)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if u.ID != 7 || u.Username != "alice" || u.FollowerCount != 10 || u.HeartCount != 99 || u.VideoCount != 5 {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := c.User(context.Background(), "tok", 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
