package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

func TestNew(t *testing.T) {
	client := New(nil)
	if client == nil {
		t.Fatal("Expected client to be created with nil config")
		return
	}
	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}
	if client.config.DefaultHeaders["User-Agent"] != UserAgent {
		t.Errorf("Expected default user agent %q, got %q", UserAgent, client.config.DefaultHeaders["User-Agent"])
	}

	config := &Config{
		Timeout:    10 * time.Second,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
	}
	client = New(config)
	if client.config.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", client.config.Timeout)
	}
	if client.HTTPClient().Timeout != 10*time.Second {
		t.Errorf("Expected http.Client timeout 10s, got %v", client.HTTPClient().Timeout)
	}
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "token-1" {
			t.Errorf("Expected authorization header, got %s", r.Header.Get("Authorization"))
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		if body["device_mac"] != "AABBCCDDEEFF" {
			t.Errorf("Expected device_mac AABBCCDDEEFF, got %s", body["device_mac"])
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"statusCode":100}`))
	}))
	defer server.Close()

	client := New(nil)
	resp, err := client.PostJSON(context.Background(), server.URL, "",
		map[string]string{"device_mac": "AABBCCDDEEFF"},
		map[string]string{"Authorization": "token-1"})
	if err != nil {
		t.Fatalf("POST request failed: %v", err)
	}

	var result struct {
		StatusCode int `json:"statusCode"`
	}
	if err := resp.JSON(&result); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if result.StatusCode != 100 {
		t.Errorf("Expected statusCode 100, got %d", result.StatusCode)
	}
}

func TestPostJSONCustomContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-amz-json-1.1" {
			t.Errorf("Expected amz json content type, got %s", ct)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	headers := map[string]string{"X-Amz-Target": "Service.Op"}
	_, err := New(nil).PostJSON(context.Background(), server.URL, "application/x-amz-json-1.1", map[string]string{}, headers)
	if err != nil {
		t.Fatalf("POST request failed: %v", err)
	}
	if _, ok := headers["Content-Type"]; ok {
		t.Error("PostJSON must not modify the caller's header map")
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType apperrors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, apperrors.AuthenticationError},
		{"forbidden", http.StatusForbidden, apperrors.AuthorizationError},
		{"not found", http.StatusNotFound, apperrors.ValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			resp, err := New(nil).PostJSON(context.Background(), server.URL, "", nil, nil)
			if err == nil {
				t.Fatal("Expected error for non-2xx response")
			}
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected error type %s, got %v", tt.wantType, err)
			}
			if resp == nil {
				t.Fatal("Expected response even with error")
			}
			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if !strings.Contains(resp.String(), "nope") {
				t.Errorf("Expected body to be kept, got %s", resp.String())
			}
		})
	}
}

func TestRetryLogic(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("server error"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	client := New(&Config{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	})

	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if err != nil {
		t.Fatalf("Request should succeed after retries: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
	if resp.String() != "success" {
		t.Errorf("Expected body 'success', got %s", resp.String())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(&Config{Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestTimeoutHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(&Config{Timeout: 50 * time.Millisecond})

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !apperrors.IsType(err, apperrors.NetworkError) {
		t.Errorf("Expected network error, got: %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(nil).Do(ctx, &Request{Method: http.MethodGet, URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline exceeded, got: %v", err)
	}
}

func TestEmptyResponseJSON(t *testing.T) {
	resp := &Response{}
	var v map[string]any
	if err := resp.JSON(&v); err == nil {
		t.Error("Expected error for empty body")
	}
}
