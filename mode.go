package vcr

import (
	"fmt"
	"os"
	"strings"
)

// EnvMode is the environment variable read by ModeFromEnv.
const EnvMode = "VCR_MODE"

// Mode controls when requests are sent to the network.
type Mode int

// Possible values:
const (
	// Once records every request when the cassette is new. When the
	// cassette already existed, recorded requests are replayed and any
	// unrecorded request fails with UnmatchedRequestError.
	Once Mode = iota

	// Update replays recorded requests and records any request that has no
	// recording yet. Also known as record_new_episodes.
	Update

	// None only replays. Requests without a recording fail with
	// UnmatchedRequestError; the network is never used.
	None

	// Always sends every request to the network and records it. Previous
	// recordings are kept but never replayed.
	Always
)

var modeNames = map[Mode]string{
	Once:   "once",
	Update: "update",
	None:   "none",
	Always: "always",
}

// String returns the name of the mode.
func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name. record_new_episodes is accepted as an alias
// for update.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "once":
		return Once, nil
	case "update", "record_new_episodes":
		return Update, nil
	case "none":
		return None, nil
	case "always":
		return Always, nil
	}
	return 0, fmt.Errorf("vcr: unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("vcr: unknown mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ModeFromEnv returns the mode named by the VCR_MODE environment variable,
// or fallback if it is unset.
func ModeFromEnv(fallback Mode) (Mode, error) {
	v, ok := os.LookupEnv(EnvMode)
	if !ok || v == "" {
		return fallback, nil
	}
	return ParseMode(v)
}

// action is what a session does with one request.
type action int

const (
	actionReplay action = iota
	actionRecord
	actionUnmatched
)

func (a action) String() string {
	switch a {
	case actionReplay:
		return "replay"
	case actionRecord:
		return "record"
	default:
		return "unmatched"
	}
}

// consultsCassette reports whether recorded interactions can be replayed in
// this mode.
func (m Mode) consultsCassette() bool {
	return m != Always
}

// decide is the record mode state machine. emptyAtStart is whether the
// cassette had no interactions when the session began.
func decide(mode Mode, matched, emptyAtStart bool) action {
	switch mode {
	case Always:
		return actionRecord
	case Update:
		if matched {
			return actionReplay
		}
		return actionRecord
	case None:
		if matched {
			return actionReplay
		}
		return actionUnmatched
	default: // Once
		if matched {
			return actionReplay
		}
		if emptyAtStart {
			return actionRecord
		}
		return actionUnmatched
	}
}
