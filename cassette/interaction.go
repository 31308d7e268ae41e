package cassette

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

// An Interaction is a single recorded request-response pair.
type Interaction struct {
	Request  Request  `yaml:"request" json:"request"`
	Response Response `yaml:"response" json:"response"`

	// RecordedAt is the time the request was sent.
	RecordedAt time.Time `yaml:"recorded_at,omitempty" json:"recorded_at,omitempty"`

	// Duration is the round trip time of the live call.
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// A Request is a recorded outgoing request.
//
// The method is always upper case. The URL is kept exactly as it was sent.
type Request struct {
	Method  string `yaml:"method" json:"method"`
	URL     string `yaml:"url" json:"url"`
	Headers Header `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    Body   `yaml:"body,omitempty" json:"body,omitempty"`
}

// A Response is a recorded incoming response.
type Response struct {
	Status     string `yaml:"status,omitempty" json:"status,omitempty"`
	StatusCode int    `yaml:"status_code" json:"status_code"`
	Headers    Header `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body       Body   `yaml:"body,omitempty" json:"body,omitempty"`
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	r.Headers = r.Headers.Clone()
	return r
}

// Clone returns a deep copy of the interaction.
func (i Interaction) Clone() Interaction {
	i.Request = i.Request.Clone()
	i.Response.Headers = i.Response.Headers.Clone()
	return i
}

// Header is a flattened set of HTTP headers.
//
// Keys are kept in canonical form so lookups are case-insensitive. The
// underlying request may contain multiple values for each key; these are
// joined with ", " when flattened. Serialized headers are ordered by key.
type Header map[string]string

// Get returns the value for key, case-insensitively.
func (h Header) Get(key string) string {
	return h[http.CanonicalHeaderKey(key)]
}

// Set sets key to value, replacing any existing value.
func (h Header) Set(key, value string) {
	h[http.CanonicalHeaderKey(key)] = value
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, http.CanonicalHeaderKey(key))
}

// Keys returns the header names in sorted order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of h. A nil Header stays nil.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// HTTP expands h back into an http.Header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Set(k, v)
	}
	return out
}

// FlattenHeader converts an http.Header to a Header.
func FlattenHeader(in http.Header) Header {
	if len(in) == 0 {
		return nil
	}
	out := make(Header, len(in))
	for k, vv := range in {
		out[http.CanonicalHeaderKey(k)] = strings.Join(vv, ", ")
	}
	return out
}
