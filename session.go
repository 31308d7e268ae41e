package vcr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akupila/vcr/cassette"
)

// Stats holds counters for one session.
type Stats struct {
	// Loaded is the number of interactions on the cassette when the session
	// began.
	Loaded int32

	// Recorded is the number of interactions recorded by the session.
	Recorded int32

	// Replayed is the number of requests answered from the cassette.
	Replayed int32

	// PassedThrough is the number of requests sent to the network without
	// touching the cassette.
	PassedThrough int32

	// Unmatched is the number of requests that failed with
	// UnmatchedRequestError.
	Unmatched int32
}

// Session is an active cassette session. It implements http.RoundTripper:
// every request sent through it is recorded, replayed or passed through.
//
// A Session is safe for concurrent use. Identical concurrent requests are
// each served a different recorded occurrence; recorded interactions are
// appended in the order their responses complete.
type Session struct {
	id          string
	vcr         *VCR
	cassette    *cassette.Cassette
	storage     cassette.Storage
	mode        Mode
	masker      Masker
	passThrough PassThrough
	filters     []ResponseFilter
	real        http.RoundTripper
	metrics     *Metrics
	logger      *slog.Logger

	// prevDefault is http.DefaultTransport before a global install.
	prevDefault http.RoundTripper
	global      bool

	mu     sync.Mutex
	closed bool

	stats Stats
}

var _ http.RoundTripper = (*Session)(nil)

// ID returns the unique session id used in log records.
func (s *Session) ID() string { return s.id }

// Name returns the cassette name.
func (s *Session) Name() string { return s.cassette.Name() }

// Mode returns the mode the session runs in.
func (s *Session) Mode() Mode { return s.mode }

// Transport returns the session as an http.RoundTripper.
func (s *Session) Transport() http.RoundTripper { return s }

// Client returns an http.Client that sends requests through the session.
func (s *Session) Client() *http.Client {
	return &http.Client{Transport: s}
}

// Interactions returns a copy of the interactions on the cassette, including
// those recorded by this session.
func (s *Session) Interactions() []cassette.Interaction {
	return s.cassette.Interactions()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Loaded:        s.stats.Loaded,
		Recorded:      atomic.LoadInt32(&s.stats.Recorded),
		Replayed:      atomic.LoadInt32(&s.stats.Replayed),
		PassedThrough: atomic.LoadInt32(&s.stats.PassedThrough),
		Unmatched:     atomic.LoadInt32(&s.stats.Unmatched),
	}
}

// RoundTrip implements http.RoundTripper.
//
// The request body is read fully before anything else happens. Then:
//
//	pass-through:  the request goes to the network untouched and is not
//	               recorded.
//	replay:        the next recorded response for the request is returned.
//	record:        the request goes to the network; the masked interaction
//	               is appended to the cassette.
//	unmatched:     *UnmatchedRequestError is returned.
//
// Which of replay, record and unmatched applies is decided by the mode.
// Errors from the network are returned unchanged.
func (s *Session) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrSessionClosed
	}

	out, raw, err := captureRequest(req)
	if err != nil {
		s.metrics.observeInteraction(s.mode, outcomeError)
		return nil, err
	}
	desc := cassette.Request{
		Method:  strings.ToUpper(out.Method),
		URL:     out.URL.String(),
		Headers: cassette.FlattenHeader(out.Header),
		Body:    cassette.EncodeBody(raw, out.Header),
	}
	logger := s.logger.With("method", desc.Method, "url", desc.URL)

	if s.passThrough != nil && s.passThrough.PassThrough(&desc) {
		atomic.AddInt32(&s.stats.PassedThrough, 1)
		s.metrics.observeInteraction(s.mode, outcomePassThrough)
		logger.Debug("request passed through")
		return s.real.RoundTrip(out)
	}

	var (
		recorded cassette.Interaction
		matched  bool
	)
	if s.mode.consultsCassette() {
		recorded, matched = s.cassette.Match(desc.Method, desc.URL, raw)
	}

	act := decide(s.mode, matched, s.cassette.EmptyAtStart())
	logger.Debug("request intercepted", "action", act.String())

	switch act {
	case actionReplay:
		return s.replay(out, recorded)
	case actionRecord:
		return s.record(logger, out, desc)
	default:
		atomic.AddInt32(&s.stats.Unmatched, 1)
		s.metrics.observeInteraction(s.mode, outcomeUnmatched)
		return nil, &UnmatchedRequestError{
			Cassette: s.Name(),
			Mode:     s.mode,
			Method:   desc.Method,
			URL:      desc.URL,
		}
	}
}

// captureRequest reads the request body into memory and returns a copy of
// the request that resends the same bytes.
func captureRequest(req *http.Request) (*http.Request, []byte, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil, nil
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("vcr: read request body: %w", err)
	}
	out.Body = io.NopCloser(bytes.NewReader(raw))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	out.ContentLength = int64(len(raw))
	if len(raw) == 0 {
		out.Body = http.NoBody
	}
	return out, raw, nil
}

func (s *Session) replay(req *http.Request, in cassette.Interaction) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	body, err := in.Response.Body.Bytes()
	if err != nil {
		s.metrics.observeInteraction(s.mode, outcomeError)
		return nil, err
	}

	atomic.AddInt32(&s.stats.Replayed, 1)
	s.metrics.observeInteraction(s.mode, outcomeReplayed)
	return responseFromInteraction(req, in.Response, body), nil
}

func (s *Session) record(logger *slog.Logger, req *http.Request, desc cassette.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := s.real.RoundTrip(req)
	if err != nil {
		s.metrics.observeInteraction(s.mode, outcomeError)
		return nil, err
	}

	if resp.Request == nil {
		resp.Request = req
	}
	hasBody := cassette.HasBody(resp)
	raw, err := cassette.ConsumeBody(logger, resp)
	var encErr *cassette.EncodingError
	if err != nil && !errors.As(err, &encErr) {
		s.metrics.observeInteraction(s.mode, outcomeError)
		return nil, err
	}
	dur := time.Since(start)

	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if hasBody {
		resp.ContentLength = int64(len(raw))
	}

	in := cassette.Interaction{
		Request: desc.Clone(),
		Response: cassette.Response{
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
			Headers:    cassette.FlattenHeader(resp.Header),
			Body:       cassette.EncodeBody(raw, resp.Header),
		},
		RecordedAt: start,
		Duration:   dur,
	}
	if s.masker != nil {
		s.masker.MaskRequest(&in.Request)
	}
	for _, apply := range s.filters {
		apply(&in)
	}

	if len(s.filters) > 0 {
		// Reconstruct response after filters have been processed
		body, err := in.Response.Body.Bytes()
		if err == nil {
			resp = responseFromInteraction(req, in.Response, body)
		}
	}

	if encErr != nil {
		encErr.Name = s.Name()
		s.metrics.observeInteraction(s.mode, outcomeSkipped)
		logger.Warn("vcr: interaction not recorded", "error", encErr)
		return resp, nil
	}
	if err := s.cassette.Append(in); err != nil {
		s.metrics.observeInteraction(s.mode, outcomeSkipped)
		logger.Warn("vcr: interaction not recorded", "error", err)
		return resp, nil
	}

	atomic.AddInt32(&s.stats.Recorded, 1)
	s.metrics.observeInteraction(s.mode, outcomeRecorded)
	logger.Debug("interaction recorded", "status", resp.StatusCode, "duration", dur)
	return resp, nil
}

func responseFromInteraction(req *http.Request, r cassette.Response, body []byte) *http.Response {
	status := r.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
	}
	resp := &http.Response{
		Status:        status,
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.Headers.HTTP(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	if !cassette.HasBody(resp) {
		// Content-Length describes the body a GET would have returned.
		resp.Body = http.NoBody
		resp.ContentLength = -1
		if n, err := strconv.ParseInt(r.Headers.Get("Content-Length"), 10, 64); err == nil {
			resp.ContentLength = n
		}
	}
	return resp
}

// End uninstalls the session and saves the cassette if anything was
// recorded. End is safe to call more than once; only the first call has an
// effect.
//
// Requests still in flight when End is called complete normally, but what
// they record after the save is not persisted.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.uninstall()

	// The slot is held until the save lands so the next Begin on this VCR
	// loads what was recorded here.
	err := s.cassette.Save(ctx, s.storage)
	s.vcr.release(s)
	if s.cassette.Recorded() > 0 {
		s.metrics.observeSave(err)
	}

	stats := s.Stats()
	s.logger.Debug("cassette session ended",
		"loaded", stats.Loaded,
		"recorded", stats.Recorded,
		"replayed", stats.Replayed,
		"passed_through", stats.PassedThrough,
		"unmatched", stats.Unmatched,
	)
	if err != nil {
		s.logger.Error("failed to save cassette", "error", err)
		return fmt.Errorf("vcr: save cassette %q: %w", s.Name(), err)
	}
	return nil
}

func (s *Session) install() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSession != nil {
		return fmt.Errorf("%w: cassette %q is installed as http.DefaultTransport", ErrSessionActive, globalSession.Name())
	}
	s.prevDefault = http.DefaultTransport
	http.DefaultTransport = s
	globalSession = s
	s.global = true
	return nil
}

func (s *Session) uninstall() {
	if !s.global {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSession == s {
		http.DefaultTransport = s.prevDefault
		globalSession = nil
	}
}
