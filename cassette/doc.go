// Package cassette holds the recorded data model and the logic that operates
// on it without touching the network.
//
// A Cassette is a named, ordered list of Interactions. Bodies are stored in a
// storage-safe form by the body codec (see EncodeBody and Body.Bytes) and
// recorded interactions are served back in order by Cassette.Match.
//
// Persistence is delegated to a Storage implementation; see package storage.
package cassette
