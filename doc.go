// Package vcr provides an HTTP record/replay transport for tests.
//
// Code under test issues HTTP requests through a Session, either via
// Session.Client, Session.Transport or, with WithGlobalInstall, through
// http.DefaultTransport. Each request is either forwarded to the network and
// recorded to a named cassette, or answered from a previous recording without
// touching the network. Which of the two happens depends on the Mode.
//
//	v := vcr.New(storage.NewFileStorage("testdata/cassettes"))
//	err := v.UseCassette(ctx, "users_list", func(s *vcr.Session) error {
//		return run(s.Client())
//	})
//
// Recorded requests are matched by method, URL and body. Identical requests
// are replayed in the order they were recorded. Headers are not matched, so
// they can be masked before they are saved (see Masker).
package vcr
