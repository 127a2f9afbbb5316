package httpclient_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/torosent/stampede/internal/httpclient"
	"github.com/torosent/stampede/internal/scenario"
)

func TestSendPostsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"id":"1"}` {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	client := httpclient.NewClient(5*time.Second, httpclient.WithBodyCapture(true))
	resp, err := client.Send(context.Background(), &scenario.Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/payments",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"id":"1"}`),
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"status":"queued"}` {
		t.Fatalf("body = %q", resp.Body)
	}
	if resp.Latency <= 0 {
		t.Fatalf("latency = %v", resp.Latency)
	}
}

func TestSendWithoutBodyCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	resp, err := httpclient.NewClient(time.Second).Send(context.Background(), &scenario.Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Body != nil {
		t.Fatalf("expected no body, got %d bytes", len(resp.Body))
	}
}

func TestSendCapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, httpclient.MaxBodyBytes+1024))
	}))
	defer srv.Close()

	resp, err := httpclient.NewClient(5*time.Second, httpclient.WithBodyCapture(true)).
		Send(context.Background(), &scenario.Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(resp.Body) != httpclient.MaxBodyBytes {
		t.Fatalf("body length = %d, want %d", len(resp.Body), httpclient.MaxBodyBytes)
	}
}

func TestSendTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := httpclient.NewClient(50*time.Millisecond).Send(context.Background(), &scenario.Request{Method: "GET", URL: srv.URL})
	var terr *httpclient.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !terr.Timeout() {
		t.Fatalf("expected timeout classification for %v", err)
	}
	if terr.Op != "send" {
		t.Fatalf("op = %q", terr.Op)
	}
	if terr.Latency < 50*time.Millisecond {
		t.Errorf("latency = %s, want at least the 50ms timeout", terr.Latency)
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = httpclient.NewClient(time.Second).Send(context.Background(), &scenario.Request{Method: "GET", URL: "http://" + addr})
	var terr *httpclient.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Timeout() {
		t.Fatalf("refused connection should not be a timeout")
	}
}

func TestSendInvalidRequest(t *testing.T) {
	_, err := httpclient.NewClient(time.Second).Send(context.Background(), &scenario.Request{Method: "GET", URL: "://missing-scheme"})
	var terr *httpclient.TransportError
	if !errors.As(err, &terr) || terr.Op != "build" {
		t.Fatalf("expected build TransportError, got %v", err)
	}
	if terr.Latency != 0 {
		t.Errorf("latency = %s, want 0 for a request never sent", terr.Latency)
	}
}
