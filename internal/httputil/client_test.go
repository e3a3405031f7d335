package httputil

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNewClient_Timeout(t *testing.T) {
	if c := NewClient(3 * time.Second); c.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", c.Timeout)
	}
	if c := NewClient(-1); c.Timeout != 0 {
		t.Errorf("negative timeout should be unbounded, got %v", c.Timeout)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"ok":true}`).
		AddResponse(http.StatusNotFound, `{"error":"gone"}`)

	req, _ := http.NewRequest(http.MethodPost, "http://detector/outline", bytes.NewBufferString(`{"x":1}`))
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != `{"ok":true}` {
		t.Errorf("first response = %d %q", resp.StatusCode, body)
	}
	if got := string(mock.Body(0)); got != `{"x":1}` {
		t.Errorf("recorded body = %q", got)
	}

	req2, _ := http.NewRequest(http.MethodGet, "http://detector/outline", nil)
	resp, err = mock.Do(req2)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second status = %d", resp.StatusCode)
	}

	// queue exhausted
	req3, _ := http.NewRequest(http.MethodGet, "http://detector/outline", nil)
	resp, err = mock.Do(req3)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("default response = %v, %v", resp, err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", mock.RequestCount())
	}
	if mock.Body(9) != nil {
		t.Error("out of range body should be nil")
	}
}

func TestMockHTTPClient_Error(t *testing.T) {
	boom := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(boom)
	req, _ := http.NewRequest(http.MethodGet, "http://detector", nil)
	if _, err := mock.Do(req); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		return newResponse(req, http.StatusTeapot, string(b)), nil
	}
	req, _ := http.NewRequest(http.MethodPost, "http://detector", bytes.NewBufferString("echo"))
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusTeapot || string(b) != "echo" {
		t.Errorf("got %d %q", resp.StatusCode, b)
	}
}
