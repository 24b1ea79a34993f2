package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

// FileStore keeps one JSON file per ref under Root, at <Root>/<name>/<tag>.json.
type FileStore struct {
	Root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, deskerrors.ConfigError("failed to create document directory", err)
	}
	return &FileStore{Root: root}, nil
}

func (s *FileStore) path(ref Ref) (string, error) {
	p, err := securejoin.SecureJoin(s.Root, filepath.Join(ref.Name, ref.Tag+".json"))
	if err != nil {
		return "", fmt.Errorf("invalid document ref %s: %w", ref, err)
	}
	return p, nil
}

func (s *FileStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, deskerrors.ExternalFailure("document read", err)
	}
	return data, nil
}

// Put writes to a temp file in the same directory and renames it over the
// target, so readers see either the old or the new document.
func (s *FileStore) Put(_ context.Context, ref Ref, doc []byte) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return deskerrors.ExternalFailure("document write", err)
	}

	tmp, err := os.CreateTemp(dir, ".doc-*")
	if err != nil {
		return deskerrors.ExternalFailure("document write", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return deskerrors.ExternalFailure("document write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return deskerrors.ExternalFailure("document write", err)
	}
	if err := tmp.Close(); err != nil {
		return deskerrors.ExternalFailure("document write", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return deskerrors.ExternalFailure("document write", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
