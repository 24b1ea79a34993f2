package docstore

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// ImageStore keeps each document in the Comment field of the image name:tag.
// A Put commits a throwaway container of that image with the document as the
// commit message, so the image is rewritten on every write.
type ImageStore struct {
	rt runtime.Runtime

	// ContainerPrefix names the throwaway containers.
	ContainerPrefix string

	mu sync.Mutex
}

// NewImageStore creates an ImageStore on the given runtime.
func NewImageStore(rt runtime.Runtime) *ImageStore {
	return &ImageStore{rt: rt, ContainerPrefix: "desklab-doc-"}
}

// ArtifactBacked is true: committing an image with a message writes its document.
func (s *ImageStore) ArtifactBacked() bool { return true }

func (s *ImageStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	img, err := s.rt.InspectImage(ctx, ref.String())
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, deskerrors.ExternalFailure("image inspect", err)
	}
	if img.Comment == "" {
		return nil, ErrNotFound
	}
	return []byte(img.Comment), nil
}

// emptyTar is a valid tar stream with no entries.
func emptyTar() []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	_ = tw.Close()
	return buf.Bytes()
}

func (s *ImageStore) Put(ctx context.Context, ref Ref, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rt.InspectImage(ctx, ref.String()); err != nil {
		if !errors.Is(err, runtime.ErrNotFound) {
			return deskerrors.ExternalFailure("image inspect", err)
		}
		logging.Debug("creating document image", "ref", ref.String())
		if err := s.rt.ImportImage(ctx, bytes.NewReader(emptyTar()), ref.Name, ref.Tag); err != nil {
			return deskerrors.ExternalFailure("image import", err)
		}
	}

	name := s.ContainerPrefix + uuid.NewString()
	if _, err := s.rt.Create(ctx, runtime.CreateOptions{
		Name:    name,
		Image:   ref.String(),
		Command: []string{"true"},
	}); err != nil {
		return deskerrors.ExternalFailure("container create", err)
	}
	defer func() {
		if err := s.rt.Remove(context.WithoutCancel(ctx), name, true); err != nil {
			logging.Warn("failed to remove document container", "container", name, "error", err)
		}
	}()

	if _, err := s.rt.Commit(ctx, name, ref.Name, ref.Tag, string(doc)); err != nil {
		return deskerrors.ExternalFailure("container commit", err)
	}
	return nil
}

func (s *ImageStore) Close() error { return nil }

var (
	_ Store          = (*ImageStore)(nil)
	_ ArtifactBacked = (*ImageStore)(nil)
)
