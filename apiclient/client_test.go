package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer(handler http.HandlerFunc, header map[string]string) (*httptest.Server, *Client) {
	srv := httptest.NewServer(handler)
	client := NewClient(func() string { return srv.URL }, func() map[string]string { return header }, 5*time.Second)
	return srv, client
}

func TestLogin(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("path = %q, want /auth/login", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var req LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.UsernameOrEmail != "op1@plant.local" {
			t.Errorf("username_or_email = %q", req.UsernameOrEmail)
		}
		if req.Password != "secret" {
			t.Errorf("password = %q", req.Password)
		}
		w.Write([]byte(`{"access_token":"jwt-1","token_type":"bearer","user":{"id":7,"username":"op1","email":"op1@plant.local","full_name":null,"role":"Operator","department":"Mixing","status":"Active","permissions":["prepare_batch"]}}`))
	}, nil)
	defer srv.Close()

	resp, err := client.Login(context.Background(), "op1@plant.local", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken != "jwt-1" {
		t.Errorf("access_token = %q, want %q", resp.AccessToken, "jwt-1")
	}
	if resp.User.ID != 7 || resp.User.Username != "op1" {
		t.Errorf("user = %+v", resp.User)
	}
	if len(resp.User.Permissions) != 1 || resp.User.Permissions[0] != "prepare_batch" {
		t.Errorf("permissions = %v", resp.User.Permissions)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`))
	}, nil)
	defer srv.Close()

	_, err := client.Login(context.Background(), "op1", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_ServerError(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, nil)
	defer srv.Close()

	_, err := client.Login(context.Background(), "op1", "pw")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 500 || apiErr.Detail != "boom" {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestRegister_DetailSurfaced(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/register" {
			t.Errorf("path = %q, want /auth/register", r.URL.Path)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Username already registered"}`))
	}, nil)
	defer srv.Close()

	_, err := client.Register(context.Background(), RegisterRequest{Username: "op1", Email: "a@b.c", Password: "secret1"})
	if err == nil || err.Error() != "api HTTP 400: Username already registered" {
		t.Errorf("err = %v", err)
	}
}

func TestGet_SendsAuthHeader(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer jwt-1")
		}
		w.Write([]byte(`{"ok":true}`))
	}, map[string]string{"Authorization": "Bearer jwt-1"})
	defer srv.Close()

	var out struct{ OK bool }
	if err := client.Get(context.Background(), "/skus", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !out.OK {
		t.Error("ok = false, want true")
	}
}

func TestBaseURLEvaluatedPerCall(t *testing.T) {
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`"a"`)) }))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`"b"`)) }))
	defer b.Close()

	current := a.URL
	client := NewClient(func() string { return current }, nil, time.Second)

	var got string
	client.Get(context.Background(), "/", &got)
	if got != "a" {
		t.Errorf("first = %q, want a", got)
	}
	current = b.URL
	client.Get(context.Background(), "/", &got)
	if got != "b" {
		t.Errorf("second = %q, want b", got)
	}

	pinned := client.WithBaseURL(func() string { return a.URL })
	pinned.Get(context.Background(), "/", &got)
	if got != "a" {
		t.Errorf("pinned = %q, want a", got)
	}
}
