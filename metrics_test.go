package vcr_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/akupila/vcr"
	"github.com/akupila/vcr/storage"
)

func TestMetrics(t *testing.T) {
	ts, _ := echoServer(t)
	reg := prometheus.NewRegistry()
	v := vcr.New(storage.NewMemoryStorage(), vcr.WithMetrics(vcr.NewMetrics(reg)))

	mustUse(t, v, "metrics", func(s *vcr.Session) {
		for i := 0; i < 3; i++ {
			resp, err := s.Client().Get(ts.URL)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
		}
	})

	v.SetMode(vcr.None)
	err := v.UseCassette(context.Background(), "metrics", func(s *vcr.Session) error {
		_, err := s.Client().Get(ts.URL + "/missing")
		if err == nil {
			t.Error("Expected unmatched request error")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := `
# HELP vcr_interactions_total Total number of intercepted HTTP requests
# TYPE vcr_interactions_total counter
vcr_interactions_total{mode="none",outcome="unmatched"} 1
vcr_interactions_total{mode="once",outcome="recorded"} 1
vcr_interactions_total{mode="once",outcome="replayed"} 2
# HELP vcr_cassette_saves_total Total number of cassette saves
# TYPE vcr_cassette_saves_total counter
vcr_cassette_saves_total{result="success"} 1
# HELP vcr_sessions_total Total number of cassette sessions started
# TYPE vcr_sessions_total counter
vcr_sessions_total{mode="none"} 1
vcr_sessions_total{mode="once"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"vcr_interactions_total", "vcr_cassette_saves_total", "vcr_sessions_total"); err != nil {
		t.Error(err)
	}
}
