package main

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/akupila/vcr/cassette"
	"github.com/akupila/vcr/storage"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(t, rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag in the command tree to its default. Flag
// variables and their Changed state outlive a single execution.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("Reset flag --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

func fixture() []cassette.Interaction {
	recordedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []cassette.Interaction{
		{
			Request: cassette.Request{
				Method:  http.MethodPost,
				URL:     "https://api.example.com/users",
				Headers: cassette.Header{"Content-Type": "application/json"},
				Body:    cassette.Body{ContentType: "application/json", Data: `{"name":"alex"}`},
			},
			Response: cassette.Response{
				Status:     "201 Created",
				StatusCode: 201,
				Headers:    cassette.Header{"Content-Type": "application/json"},
				Body:       cassette.Body{ContentType: "application/json", Data: `{"id":1}`},
			},
			RecordedAt: recordedAt,
			Duration:   150 * time.Millisecond,
		},
		{
			Request: cassette.Request{
				Method: http.MethodGet,
				URL:    "https://api.example.com/avatar.png",
			},
			Response: cassette.Response{
				Status:     "200 OK",
				StatusCode: 200,
				Headers:    cassette.Header{"Content-Type": "image/png"},
				Body:       cassette.EncodeBody([]byte{0x89, 'P', 'N', 'G'}, http.Header{"Content-Type": {"image/png"}}),
			},
			RecordedAt: recordedAt.Add(time.Second),
		},
	}
}

func writeFixture(t *testing.T, dir, name string) {
	t.Helper()
	err := storage.NewFileStorage(dir).Save(context.Background(), name, fixture())
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	d := t.TempDir()
	writeFixture(t, d, "api/users")
	writeFixture(t, d, "health")

	out, err := execute(t, "list", "--dir", d)
	require.NoError(t, err)
	require.Equal(t, "api/users\nhealth\n", out)
}

func TestList_EmptyDir(t *testing.T) {
	out, err := execute(t, "list", "--dir", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestShow(t *testing.T) {
	d := t.TempDir()
	writeFixture(t, d, "api/users")

	out, err := execute(t, "show", "api/users", "--dir", d)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, []string{"0", "POST", "https://api.example.com/users", "201", "text", "8", "bytes"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"1", "GET", "https://api.example.com/avatar.png", "200", "bin", "4", "bytes"}, strings.Fields(lines[1]))
}

func TestShow_Bodies(t *testing.T) {
	d := t.TempDir()
	writeFixture(t, d, "api/users")

	out, err := execute(t, "show", "api/users", "--dir", d, "--bodies")
	require.NoError(t, err)
	require.Contains(t, out, `> {"name":"alex"}`)
	require.Contains(t, out, `< {"id":1}`)
	require.Contains(t, out, "< <binary image/png, 4 bytes>")
}

func TestShow_NotFound(t *testing.T) {
	_, err := execute(t, "show", "nope", "--dir", t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), `cassette "nope" not found`)
}

func TestConvert_RoundTrip(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	db := filepath.Join(t.TempDir(), "cassettes.db")
	writeFixture(t, src, "api/users")

	out, err := execute(t, "convert", "api/users", "--dir", src, "--sqlite", db)
	require.NoError(t, err)
	require.Contains(t, out, "Copied 2 interactions")

	out, err = execute(t, "list", "--sqlite", db)
	require.NoError(t, err)
	require.Equal(t, "api/users\n", out)

	_, err = execute(t, "convert", "api/users", "--dir", dst, "--sqlite", db, "--reverse")
	require.NoError(t, err)

	got, err := storage.NewFileStorage(dst).Load(context.Background(), "api/users")
	require.NoError(t, err)
	if diff := cmp.Diff(fixture(), got); diff != "" {
		t.Errorf("Converted cassette does not match (-want, +got)\n%s", diff)
	}
}

func TestConvert_RequiresSQLite(t *testing.T) {
	d := t.TempDir()
	writeFixture(t, d, "api/users")

	_, err := execute(t, "convert", "api/users", "--dir", d, "--sqlite", filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)

	_, err = execute(t, "convert", "api/users", "--dir", d)
	require.Error(t, err)
	require.Contains(t, err.Error(), `required flag(s) "sqlite" not set`)
}

func TestFlagsDoNotCarryOver(t *testing.T) {
	d := t.TempDir()
	writeFixture(t, d, "api/users")

	out, err := execute(t, "show", "api/users", "--dir", d, "--bodies")
	require.NoError(t, err)
	require.Contains(t, out, `> {"name":"alex"}`)

	out, err = execute(t, "show", "api/users", "--dir", d)
	require.NoError(t, err)
	require.NotContains(t, out, `> {"name":"alex"}`)

	// --dir falls back to its default.
	_, err = execute(t, "show", "api/users")
	require.Error(t, err)
	require.Contains(t, err.Error(), "testdata/cassettes")
}
