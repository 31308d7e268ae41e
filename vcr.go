package vcr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/akupila/vcr/cassette"
)

// baseTransport is http.DefaultTransport as it was before any session
// replaced it.
var baseTransport = http.DefaultTransport

var (
	globalMu      sync.Mutex
	globalSession *Session
)

// VCR starts cassette sessions and holds the policy applied to them.
//
// Policy (mode, masker, pass-through) may be changed between sessions; each
// session uses the policy that was in effect when it began. A VCR runs at
// most one session at a time.
type VCR struct {
	storage   cassette.Storage
	transport http.RoundTripper
	logger    *slog.Logger
	metrics   *Metrics
	global    bool

	mu          sync.Mutex
	mode        Mode
	masker      Masker
	passThrough PassThrough
	filters     []ResponseFilter
	active      *Session
}

// Option configures a VCR.
type Option func(*VCR)

// WithMode sets the record mode. The default is Once.
func WithMode(m Mode) Option {
	return func(v *VCR) { v.mode = m }
}

// WithMasker sets the Masker applied to requests before they are recorded.
func WithMasker(m Masker) Option {
	return func(v *VCR) { v.masker = m }
}

// WithPassThrough sets the PassThrough that excludes requests from
// recording and replay.
func WithPassThrough(p PassThrough) Option {
	return func(v *VCR) { v.passThrough = p }
}

// WithResponseFilters sets filters applied to interactions before they are
// recorded. Filters are executed in the order specified.
func WithResponseFilters(filters ...ResponseFilter) Option {
	return func(v *VCR) { v.filters = filters }
}

// WithTransport sets the transport used for real requests. If unset,
// http.DefaultTransport is used.
func WithTransport(rt http.RoundTripper) Option {
	return func(v *VCR) { v.transport = rt }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(v *VCR) { v.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(v *VCR) { v.metrics = m }
}

// WithGlobalInstall makes sessions replace http.DefaultTransport while they
// are active, so requests made with http.Get, http.DefaultClient or any
// client without its own transport are intercepted too.
//
// Only one session in the process can be globally installed at a time.
func WithGlobalInstall() Option {
	return func(v *VCR) { v.global = true }
}

// New creates a VCR that loads and saves cassettes with s.
func New(s cassette.Storage, opts ...Option) *VCR {
	v := &VCR{
		storage: s,
		mode:    Once,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.logger = v.logger.With("component", "vcr")
	return v
}

// Configure sets the policy for sessions started after the call. A nil
// masker or passThrough disables it.
func (v *VCR) Configure(mode Mode, masker Masker, passThrough PassThrough) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = mode
	v.masker = masker
	v.passThrough = passThrough
}

// SetMode sets the mode for sessions started after the call.
func (v *VCR) SetMode(m Mode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = m
}

// Mode returns the current mode.
func (v *VCR) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Begin loads the named cassette and starts a session.
//
// Begin fails with ErrSessionActive if this VCR already has an active
// session, or if global install is enabled and another session is installed.
// A storage failure is returned as is; the session does not start with an
// empty cassette.
//
// Every successful Begin must be paired with Session.End.
func (v *VCR) Begin(ctx context.Context, name string) (*Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.active != nil {
		return nil, fmt.Errorf("%w: cassette %q", ErrSessionActive, v.active.Name())
	}

	c, err := cassette.Load(ctx, v.storage, name)
	if err != nil {
		return nil, fmt.Errorf("vcr: load cassette %q: %w", name, err)
	}

	rt := v.transport
	if rt == nil {
		rt = baseTransport
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		vcr:         v,
		cassette:    c,
		storage:     v.storage,
		mode:        v.mode,
		masker:      v.masker,
		passThrough: v.passThrough,
		filters:     v.filters,
		real:        rt,
		metrics:     v.metrics,
		logger:      v.logger.With("cassette", name, "session", id, "mode", v.mode.String()),
	}
	s.stats.Loaded = int32(c.Len())

	if v.global {
		if err := s.install(); err != nil {
			return nil, err
		}
	}

	v.active = s
	v.metrics.observeSession(s.mode)
	s.logger.Debug("cassette session started", "interactions", c.Len(), "global", v.global)
	return s, nil
}

// UseCassette runs fn inside a session for the named cassette.
//
// The session is always ended, and the cassette saved if anything was
// recorded, whether fn returns normally, returns an error or panics. Errors
// from fn and from ending the session are both returned.
func (v *VCR) UseCassette(ctx context.Context, name string, fn func(s *Session) error) (err error) {
	s, err := v.Begin(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		endErr := s.End(context.WithoutCancel(ctx))
		err = errors.Join(err, endErr)
	}()
	return fn(s)
}

func (v *VCR) release(s *Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == s {
		v.active = nil
	}
}
