package cassette

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// LargeBodyThreshold is the declared content length above which a textual
// response triggers a warning before it is read into memory.
const LargeBodyThreshold = 1 << 20

// Body is a request or response payload in storage-safe form.
//
// Textual bodies are kept as-is in Data. Binary bodies are base64 encoded
// and have Binary set.
type Body struct {
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Binary      bool   `yaml:"binary,omitempty" json:"binary,omitempty"`
	Data        string `yaml:"data,omitempty" json:"data,omitempty"`
}

// EncodeBody converts raw bytes into a Body, using header to decide whether
// the payload is binary.
//
// A payload classified as text that is not valid UTF-8 is stored as binary
// so it survives any storage format unchanged.
func EncodeBody(raw []byte, header http.Header) Body {
	b := Body{ContentType: header.Get("Content-Type")}
	if len(raw) == 0 {
		return b
	}
	if IsBinary(header) || !utf8.Valid(raw) {
		b.Binary = true
		b.Data = base64.StdEncoding.EncodeToString(raw)
		return b
	}
	b.Data = string(raw)
	return b
}

// Bytes decodes the body back into the exact bytes that were encoded.
func (b Body) Bytes() ([]byte, error) {
	if !b.Binary {
		return []byte(b.Data), nil
	}
	raw, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, &EncodingError{Reason: "invalid base64 body", Err: err}
	}
	return raw, nil
}

// Len returns the decoded length of the body without decoding it.
func (b Body) Len() int {
	if !b.Binary {
		return len(b.Data)
	}
	return base64.StdEncoding.DecodedLen(len(b.Data)) - strings.Count(b.Data, "=")
}

var compressedEncodings = map[string]bool{
	"gzip":     true,
	"x-gzip":   true,
	"deflate":  true,
	"br":       true,
	"compress": true,
	"zstd":     true,
}

var textSubtypes = map[string]bool{
	"json":                  true,
	"xml":                   true,
	"javascript":            true,
	"ecmascript":            true,
	"x-javascript":          true,
	"x-www-form-urlencoded": true,
	"graphql":               true,
	"yaml":                  true,
	"x-yaml":                true,
	"x-ndjson":              true,
	"ndjson":                true,
	"csv":                   true,
	"html":                  true,
}

// IsBinary reports whether a payload with the given headers must be stored
// base64 encoded.
//
// The decision is made from metadata only: a compressing Content-Encoding, or
// a Content-Type that is not a known textual media type. A missing
// Content-Type is treated as text.
func IsBinary(header http.Header) bool {
	for _, enc := range header.Values("Content-Encoding") {
		for _, e := range strings.Split(enc, ",") {
			if compressedEncodings[strings.ToLower(strings.TrimSpace(e))] {
				return true
			}
		}
	}

	ct := header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	typ, subtype, _ := strings.Cut(mediaType, "/")
	if typ == "text" {
		return false
	}
	if textSubtypes[subtype] {
		return false
	}
	if strings.HasSuffix(subtype, "+json") || strings.HasSuffix(subtype, "+xml") {
		return false
	}
	return true
}

// ConsumeBody reads a response body fully and closes it.
//
// If the response declares a content length above LargeBodyThreshold and is
// not binary a warning is logged before reading. When the number of bytes
// read does not match the declared length the bytes are returned together
// with an *EncodingError. Responses that never carry a body (to HEAD, 204,
// 304) are exempt from both: their Content-Length describes a body that was
// not sent.
func ConsumeBody(logger *slog.Logger, resp *http.Response) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if !HasBody(resp) {
		return io.ReadAll(resp.Body)
	}

	if resp.ContentLength > LargeBodyThreshold && !IsBinary(resp.Header) {
		logger.Warn("vcr: large response detected",
			"content_length", resp.ContentLength,
			"content_type", resp.Header.Get("Content-Type"),
			"threshold", LargeBodyThreshold,
		)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return raw, err
	}
	if resp.ContentLength >= 0 && int64(len(raw)) != resp.ContentLength {
		return raw, &EncodingError{
			Reason: fmt.Sprintf("declared content length %d, read %d bytes", resp.ContentLength, len(raw)),
		}
	}
	return raw, nil
}

// HasBody reports whether resp can carry a body. Responses to HEAD requests
// and 1xx, 204 and 304 responses never do.
func HasBody(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch {
	case resp.StatusCode >= 100 && resp.StatusCode < 200,
		resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		return false
	}
	return true
}
