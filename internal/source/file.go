package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knadh/koanf/providers/file"
	"go.uber.org/zap"
)

// FileSource serves profiles from local JSON documents, mainly
// for offline development. A profile app/env/cfg maps to
// {dir}/{app}/{env}/{cfg}.json.
type FileSource struct {
	dir string
	log *zap.Logger
}

var _ Source = (*FileSource)(nil)

func NewFileSource(dir string, log *zap.Logger) *FileSource {
	return &FileSource{
		dir: dir,
		log: log.Named("file_source"),
	}
}

func (s *FileSource) Open(_ context.Context, ref ProfileRef) (Session, error) {
	path := filepath.Join(s.dir, ref.Application, ref.Environment, ref.Configuration+".json")

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("opening document for %s: %w", ref, err)
	}

	s.log.Debug("file session opened", zap.String("path", path))

	return &fileSession{
		ref:      ref,
		provider: file.Provider(path),
	}, nil
}

type fileSession struct {
	ref      ProfileRef
	provider *file.File
	last     []byte
	revision int
}

func (s *fileSession) Fetch(context.Context) (Document, bool, error) {
	data, err := s.provider.ReadBytes()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, false, fmt.Errorf("%w: %s", ErrNotFound, s.ref)
		}
		return Document{}, false, fmt.Errorf("reading document for %s: %w", s.ref, err)
	}

	if s.last != nil && bytes.Equal(data, s.last) {
		return Document{}, false, nil
	}

	s.last = data
	s.revision++

	return Document{
		Data:        data,
		Version:     strconv.Itoa(s.revision),
		ContentType: "application/json",
	}, true, nil
}

func (s *fileSession) Close() error {
	return nil
}
