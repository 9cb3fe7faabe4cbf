package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	client, err := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClientCred: %v", err)
	}

	token, err := client.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	if token != "token1" {
		t.Fatalf("unexpected token %s", token)
	}

	req, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	if err := client.SetAuthHeader(req); err != nil {
		t.Fatalf("SetAuthHeader returned error: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer token1" {
		t.Fatalf("unexpected header %q", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("token should be cached, got %d requests", calls.Load())
	}
}

func TestForceRefresh(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	client, err := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClientCred: %v", err)
	}
	if _, err := client.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	tok, err := client.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if tok != "token2" || calls.Load() != 2 {
		t.Fatalf("expected a second token, got %s after %d requests", tok, calls.Load())
	}
}

func TestTokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()
	client, err := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClientCred: %v", err)
	}
	if _, err := client.GetToken(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewClientCred_Invalid(t *testing.T) {
	if _, err := NewClientCred(Conf{ClientID: "id"}); err == nil {
		t.Fatal("expected an error for missing credentials")
	}
}
