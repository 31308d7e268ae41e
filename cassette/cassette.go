package cassette

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// matchKey identifies requests that are interchangeable for replay. Headers
// are deliberately not part of it.
type matchKey struct {
	method string
	url    string
	body   string
}

func newMatchKey(method, url string, body []byte) matchKey {
	return matchKey{method: strings.ToUpper(method), url: url, body: string(body)}
}

// Cassette is the in-memory state of one named recording session.
//
// Interactions loaded from storage and interactions appended while recording
// are both replay candidates. Identical requests are served in the order
// they were recorded, each at most once.
//
// A Cassette is safe for concurrent use.
type Cassette struct {
	name         string
	emptyAtStart bool

	mu           sync.Mutex
	interactions []Interaction
	keys         []matchKey
	served       map[matchKey]int
	recorded     int
}

// New creates a cassette named name holding the given interactions.
//
// An *EncodingError is returned if a recorded request body cannot be decoded.
func New(name string, interactions []Interaction) (*Cassette, error) {
	c := &Cassette{
		name:         name,
		emptyAtStart: len(interactions) == 0,
		interactions: make([]Interaction, 0, len(interactions)),
		keys:         make([]matchKey, 0, len(interactions)),
		served:       make(map[matchKey]int),
	}
	for i, in := range interactions {
		body, err := in.Request.Body.Bytes()
		if err != nil {
			var ee *EncodingError
			if errors.As(err, &ee) {
				ee.Name = name
				ee.Reason = fmt.Sprintf("interaction %d: %s", i, ee.Reason)
			}
			return nil, err
		}
		c.interactions = append(c.interactions, in)
		c.keys = append(c.keys, newMatchKey(in.Request.Method, in.Request.URL, body))
	}
	return c, nil
}

// Load reads the cassette name from s.
//
// A missing cassette yields an empty one. Storage failures are returned as
// is and never produce an empty cassette.
func Load(ctx context.Context, s Storage, name string) (*Cassette, error) {
	interactions, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return New(name, interactions)
}

// Name returns the cassette name.
func (c *Cassette) Name() string { return c.name }

// EmptyAtStart reports whether the cassette had no interactions when it was
// created.
func (c *Cassette) EmptyAtStart() bool { return c.emptyAtStart }

// Match returns the next unserved interaction recorded for the given method,
// url and body.
//
// For a given request the n-th call returns the n-th matching interaction
// in recorded order. Returns false once all matching interactions have been
// served, or if none exist.
func (c *Cassette) Match(method, url string, body []byte) (Interaction, bool) {
	key := newMatchKey(method, url, body)

	c.mu.Lock()
	defer c.mu.Unlock()

	want := c.served[key]
	seen := 0
	for i, k := range c.keys {
		if k != key {
			continue
		}
		if seen == want {
			c.served[key]++
			return c.interactions[i].Clone(), true
		}
		seen++
	}
	return Interaction{}, false
}

// Append adds a newly recorded interaction to the end of the cassette.
func (c *Cassette) Append(in Interaction) error {
	body, err := in.Request.Body.Bytes()
	if err != nil {
		var ee *EncodingError
		if errors.As(err, &ee) {
			ee.Name = c.name
		}
		return err
	}
	in.Request.Method = strings.ToUpper(in.Request.Method)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactions = append(c.interactions, in)
	c.keys = append(c.keys, newMatchKey(in.Request.Method, in.Request.URL, body))
	c.recorded++
	return nil
}

// Interactions returns a copy of all interactions in recorded order.
func (c *Cassette) Interactions() []Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Interaction, len(c.interactions))
	for i, in := range c.interactions {
		out[i] = in.Clone()
	}
	return out
}

// Len returns the number of interactions.
func (c *Cassette) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.interactions)
}

// Recorded returns the number of interactions appended since the cassette
// was created.
func (c *Cassette) Recorded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorded
}

// Save writes all interactions to s. Nothing is written if no interaction
// was recorded.
func (c *Cassette) Save(ctx context.Context, s Storage) error {
	if c.Recorded() == 0 {
		return nil
	}
	return s.Save(ctx, c.name, c.Interactions())
}
