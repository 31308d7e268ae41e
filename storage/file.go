package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/akupila/vcr/cassette"
)

// DefaultExt is the file extension used by FileStorage.
const DefaultExt = ".yaml"

// FileStorage stores each cassette in its own YAML file under Dir.
//
// Interactions are written as separate YAML documents, each preceded by a
// comment with its index, timestamp and round trip time. Cassette names may
// contain slashes; any subdirectories are created if needed.
type FileStorage struct {
	// Dir is the directory cassettes are stored in.
	Dir string

	// Ext is appended to the cassette name. Defaults to DefaultExt.
	Ext string

	logger *slog.Logger
}

var _ cassette.Storage = (*FileStorage)(nil)

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{
		Dir:    dir,
		Ext:    DefaultExt,
		logger: slog.Default().With("component", "vcr.storage.file"),
	}
}

// Path returns the file a cassette is stored in.
func (s *FileStorage) Path(name string) string {
	ext := s.Ext
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(s.Dir, filepath.FromSlash(name))
}

// Load implements cassette.Storage.
func (s *FileStorage) Load(ctx context.Context, name string) ([]cassette.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, cassette.NewStorageError("file", "load", name, err)
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cassette.NewStorageError("file", "load", name, err)
	}

	var out []cassette.Interaction
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var in cassette.Interaction
		err := dec.Decode(&in)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cassette.NewStorageError("file", "load", name, fmt.Errorf("decode interaction %d: %w", i, err))
		}
		out = append(out, in)
	}
	return out, nil
}

// Save implements cassette.Storage. The file is replaced atomically.
func (s *FileStorage) Save(ctx context.Context, name string, interactions []cassette.Interaction) error {
	if err := ctx.Err(); err != nil {
		return cassette.NewStorageError("file", "save", name, err)
	}

	var buf bytes.Buffer
	for i, in := range interactions {
		if i > 0 {
			fmt.Fprintf(&buf, "\n---\n\n")
		}
		fmt.Fprintf(&buf, "# interaction %d\n", i)
		if !in.RecordedAt.IsZero() {
			fmt.Fprintf(&buf, "# timestamp %s\n", in.RecordedAt.UTC().Round(time.Second).Format(time.RFC3339))
		}
		if in.Duration > 0 {
			fmt.Fprintf(&buf, "# roundtrip %s\n", in.Duration.Round(time.Millisecond))
		}
		b, err := yaml.Marshal(in)
		if err != nil {
			return cassette.NewStorageError("file", "save", name, fmt.Errorf("encode interaction %d: %w", i, err))
		}
		buf.Write(b)
	}

	path := s.Path(name)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return cassette.NewStorageError("file", "save", name, err)
	}

	s.log().Debug("cassette saved", "cassette", name, "path", path, "interactions", len(interactions))
	return nil
}

// List returns the names of all cassettes under Dir, sorted.
func (s *FileStorage) List() ([]string, error) {
	ext := s.Ext
	if ext == "" {
		ext = DefaultExt
	}
	var names []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ext) {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, ext)))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cassette.NewStorageError("file", "list", s.Dir, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStorage) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
