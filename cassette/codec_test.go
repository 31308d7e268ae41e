package cassette_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"testing"

	"github.com/akupila/vcr/cassette"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncodeBody_RoundTrip(t *testing.T) {
	random := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(random)

	tests := []struct {
		name       string
		raw        []byte
		header     http.Header
		wantBinary bool
	}{
		{"empty", nil, http.Header{}, false},
		{"json", []byte(`{"name":"alex"}`), http.Header{"Content-Type": {"application/json"}}, false},
		{"non-ascii text", []byte("héllo wörld, 世界 🌍"), http.Header{"Content-Type": {"text/plain; charset=utf-8"}}, false},
		{"gzip encoded", gzipped(t, `{"gzipped": true}`), http.Header{"Content-Type": {"application/json"}, "Content-Encoding": {"gzip"}}, true},
		{"octet stream", random, http.Header{"Content-Type": {"application/octet-stream"}}, true},
		{"chrome extension", random, http.Header{"Content-Type": {"application/x-chrome-extension"}}, true},
		{"invalid utf-8 labelled as text", []byte{0xff, 0xfe, 'a', 0x80}, http.Header{"Content-Type": {"text/plain"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := cassette.EncodeBody(tt.raw, tt.header)
			if body.Binary != tt.wantBinary {
				t.Errorf("Binary = %t, want %t", body.Binary, tt.wantBinary)
			}
			if body.Len() != len(tt.raw) {
				t.Errorf("Len() = %d, want %d", body.Len(), len(tt.raw))
			}
			got, err := body.Bytes()
			if err != nil {
				t.Fatalf("Bytes() failed: %v", err)
			}
			if !bytes.Equal(got, tt.raw) {
				t.Errorf("Round trip does not match\nGot  %q\nWant %q", got, tt.raw)
			}
		})
	}
}

func TestEncodeBody_TextStoredAsIs(t *testing.T) {
	body := cassette.EncodeBody([]byte(`{"name":"alex"}`), http.Header{"Content-Type": {"application/json"}})
	if body.Data != `{"name":"alex"}` {
		t.Errorf("Data = %q, want the raw text", body.Data)
	}
	if body.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want %q", body.ContentType, "application/json")
	}
}

func TestEncodeBody_GzipStoredAsBase64(t *testing.T) {
	raw := gzipped(t, "hello")
	body := cassette.EncodeBody(raw, http.Header{"Content-Encoding": {"gzip"}})
	if !strings.HasPrefix(body.Data, "H4sI") {
		t.Errorf("Data = %q, want base64 of a gzip stream", body.Data)
	}
}

func TestBody_BytesInvalidBase64(t *testing.T) {
	_, err := cassette.Body{Binary: true, Data: "not base64!"}.Bytes()
	var ee *cassette.EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("Got error %v, want *EncodingError", err)
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		header http.Header
		want   bool
	}{
		{http.Header{}, false},
		{http.Header{"Content-Type": {"text/html; charset=utf-8"}}, false},
		{http.Header{"Content-Type": {"application/json"}}, false},
		{http.Header{"Content-Type": {"application/problem+json"}}, false},
		{http.Header{"Content-Type": {"application/atom+xml"}}, false},
		{http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}, false},
		{http.Header{"Content-Type": {"application/javascript"}}, false},
		{http.Header{"Content-Type": {"application/json"}, "Content-Encoding": {"gzip"}}, true},
		{http.Header{"Content-Encoding": {"identity, br"}}, true},
		{http.Header{"Content-Type": {"image/png"}}, true},
		{http.Header{"Content-Type": {"application/pdf"}}, true},
		{http.Header{"Content-Type": {"application/x-chrome-extension"}}, true},
		{http.Header{"Content-Type": {"application/octet-stream"}}, true},
	}
	for _, tt := range tests {
		if got := cassette.IsBinary(tt.header); got != tt.want {
			t.Errorf("IsBinary(%v) = %t, want %t", tt.header, got, tt.want)
		}
	}
}

func TestConsumeBody_LargeTextWarns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	resp := &http.Response{
		Header:        http.Header{"Content-Type": {"application/json"}},
		ContentLength: cassette.LargeBodyThreshold + 1,
		Body:          io.NopCloser(strings.NewReader(`{"test": "data"}`)),
	}

	got, err := cassette.ConsumeBody(logger, resp)
	if string(got) != `{"test": "data"}` {
		t.Errorf("Body = %q, want the full body", got)
	}
	// The declared length is a lie, which is reported separately.
	var ee *cassette.EncodingError
	if !errors.As(err, &ee) {
		t.Errorf("Got error %v, want *EncodingError", err)
	}
	if !strings.Contains(logs.String(), "vcr: large response detected") {
		t.Errorf("Expected large response warning, got logs:\n%s", logs.String())
	}
}

func TestConsumeBody_LargeBinaryDoesNotWarn(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	raw := bytes.Repeat([]byte{0x1f}, cassette.LargeBodyThreshold+10)
	resp := &http.Response{
		Header:        http.Header{"Content-Type": {"application/octet-stream"}},
		ContentLength: int64(len(raw)),
		Body:          io.NopCloser(bytes.NewReader(raw)),
	}

	got, err := cassette.ConsumeBody(logger, resp)
	if err != nil {
		t.Fatalf("ConsumeBody() failed: %v", err)
	}
	if len(got) != len(raw) {
		t.Errorf("Read %d bytes, want %d", len(got), len(raw))
	}
	if logs.Len() != 0 {
		t.Errorf("Expected no logs, got:\n%s", logs.String())
	}
}

func TestConsumeBody_UnknownLength(t *testing.T) {
	resp := &http.Response{
		ContentLength: -1,
		Body:          io.NopCloser(strings.NewReader("hello")),
	}
	got, err := cassette.ConsumeBody(nil, resp)
	if err != nil {
		t.Fatalf("ConsumeBody() failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Body = %q, want %q", got, "hello")
	}
}

func TestConsumeBody_NoBodyResponses(t *testing.T) {
	head, _ := http.NewRequest(http.MethodHead, "http://example.com", nil)
	get, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"head", head, http.StatusOK},
		{"no content", get, http.StatusNoContent},
		{"not modified", get, http.StatusNotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			resp := &http.Response{
				StatusCode:    tt.status,
				Header:        http.Header{"Content-Type": {"text/plain"}},
				ContentLength: cassette.LargeBodyThreshold + 42,
				Body:          http.NoBody,
				Request:       tt.req,
			}
			if cassette.HasBody(resp) {
				t.Errorf("HasBody() = true, want false")
			}
			got, err := cassette.ConsumeBody(slog.New(slog.NewTextHandler(&logs, nil)), resp)
			if err != nil {
				t.Fatalf("ConsumeBody() failed: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Read %d bytes, want none", len(got))
			}
			if logs.Len() != 0 {
				t.Errorf("Expected no logs, got:\n%s", logs.String())
			}
		})
	}
}
