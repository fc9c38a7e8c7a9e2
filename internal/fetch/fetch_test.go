package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestStreamToTempHashesBody(t *testing.T) {
	body := []byte("pretend-wheel-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	res, err := StreamToTemp(context.Background(), srv.URL, dir, "pkg", 5*time.Second)
	if err != nil {
		t.Fatalf("StreamToTemp: %v", err)
	}
	defer os.Remove(res.TempPath)

	sum := sha256.Sum256(body)
	want := hex.EncodeToString(sum[:])
	if res.ActualHash != want {
		t.Errorf("ActualHash = %s, want %s", res.ActualHash, want)
	}
	got, err := os.ReadFile(res.TempPath)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", res.TempPath, err)
	}
	if string(got) != string(body) {
		t.Errorf("temp file contents = %q, want %q", got, body)
	}
}

func TestStreamToTempPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := StreamToTemp(context.Background(), srv.URL, t.TempDir(), "pkg", 5*time.Second)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestDownloadFileAppliesExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#!/bin/sh\necho installer\n"))
	}))
	defer srv.Close()

	path, err := DownloadFile(context.Background(), srv.URL, "bootstrap", ".sh")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	defer os.Remove(path)

	if got := path[len(path)-3:]; got != ".sh" {
		t.Errorf("path = %s, want suffix .sh", path)
	}
}
