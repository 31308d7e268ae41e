package vcr

import (
	"net/url"
	"strings"

	"github.com/akupila/vcr/cassette"
)

// MaskValue replaces header values masked by MaskHeaders.
const MaskValue = "****"

// A Masker redacts a recorded request before it is added to the cassette.
//
// MaskRequest receives a copy; the request that is sent over the network is
// never affected. Requests are matched by method, URL and body, so a Masker
// that changes any of those makes the interaction impossible to replay.
type Masker interface {
	MaskRequest(req *cassette.Request)
}

// MaskerFunc adapts a function to a Masker.
type MaskerFunc func(req *cassette.Request)

// MaskRequest implements Masker.
func (f MaskerFunc) MaskRequest(req *cassette.Request) { f(req) }

// ComposeMaskers applies maskers in order.
func ComposeMaskers(maskers ...Masker) Masker {
	return MaskerFunc(func(req *cassette.Request) {
		for _, m := range maskers {
			m.MaskRequest(req)
		}
	})
}

// MaskHeaders replaces the value of each named header with MaskValue, if the
// header is present. Names are case-insensitive.
func MaskHeaders(names ...string) Masker {
	return MaskerFunc(func(req *cassette.Request) {
		for _, name := range names {
			if req.Headers.Get(name) != "" {
				req.Headers.Set(name, MaskValue)
			}
		}
	})
}

// RemoveHeaders removes each named header from the recorded request.
func RemoveHeaders(names ...string) Masker {
	return MaskerFunc(func(req *cassette.Request) {
		for _, name := range names {
			req.Headers.Del(name)
		}
	})
}

// DefaultMasker masks common credential headers.
func DefaultMasker() Masker {
	return MaskHeaders(
		"Authorization",
		"Proxy-Authorization",
		"Cookie",
		"X-Api-Key",
		"X-Auth-Token",
		"X-Access-Token",
		"X-Client-Secret",
	)
}

// A PassThrough selects requests that bypass the cassette entirely: they
// always go to the network and are never recorded or replayed, whatever the
// mode.
//
// The request must not be modified.
type PassThrough interface {
	PassThrough(req *cassette.Request) bool
}

// PassThroughFunc adapts a function to a PassThrough.
type PassThroughFunc func(req *cassette.Request) bool

// PassThrough implements PassThrough.
func (f PassThroughFunc) PassThrough(req *cassette.Request) bool { return f(req) }

// AnyPassThrough passes a request through if any of ps does.
func AnyPassThrough(ps ...PassThrough) PassThrough {
	return PassThroughFunc(func(req *cassette.Request) bool {
		for _, p := range ps {
			if p.PassThrough(req) {
				return true
			}
		}
		return false
	})
}

// PassThroughHosts passes through requests to any of the given hosts. Hosts
// are compared case-insensitively without the port.
func PassThroughHosts(hosts ...string) PassThrough {
	return PassThroughFunc(func(req *cassette.Request) bool {
		u, err := url.Parse(req.URL)
		if err != nil {
			return false
		}
		for _, h := range hosts {
			if strings.EqualFold(u.Hostname(), h) {
				return true
			}
		}
		return false
	})
}

// PassThroughURLPrefix passes through requests whose URL starts with any of
// the given prefixes.
func PassThroughURLPrefix(prefixes ...string) PassThrough {
	return PassThroughFunc(func(req *cassette.Request) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(req.URL, p) {
				return true
			}
		}
		return false
	})
}

// A ResponseFilter modifies an interaction after the Masker has run and
// before it is added to the cassette.
//
// Filters exist to remove sensitive data from responses. The filtered
// response is also what the caller receives, so recording and replaying
// return the same thing.
type ResponseFilter func(in *cassette.Interaction)

// RemoveResponseHeaders removes each named header from the response.
func RemoveResponseHeaders(names ...string) ResponseFilter {
	return func(in *cassette.Interaction) {
		for _, name := range names {
			in.Response.Headers.Del(name)
		}
	}
}
