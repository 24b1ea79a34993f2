package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no document exists at a ref.
var ErrNotFound = errors.New("document not found")

// Ref names a document. It renders as "name:tag", the same shape as an
// image reference.
type Ref struct {
	Name string
	Tag  string
}

func (r Ref) String() string {
	return r.Name + ":" + r.Tag
}

// ParseRef parses "name:tag". The tag is everything after the last colon.
func ParseRef(s string) (Ref, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 || strings.Contains(s[i+1:], "/") {
		return Ref{}, fmt.Errorf("invalid document ref %q: expected name:tag", s)
	}
	return Ref{Name: s[:i], Tag: s[i+1:]}, nil
}

// MustParseRef is ParseRef for constants; it panics on error.
func MustParseRef(s string) Ref {
	r, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Store gets and puts whole JSON documents. Put always replaces the full
// document; there are no partial updates.
type Store interface {
	// Get returns the document at ref, or ErrNotFound.
	Get(ctx context.Context, ref Ref) ([]byte, error)

	// Put stores doc at ref, replacing any previous document.
	Put(ctx context.Context, ref Ref, doc []byte) error

	// Close releases backend connections.
	Close() error
}

// ArtifactBacked is implemented by stores whose documents live on the
// artifacts themselves. For those, committing an artifact with a message
// already persisted its document.
type ArtifactBacked interface {
	ArtifactBacked() bool
}

// IsArtifactBacked reports whether s persists documents at commit time.
func IsArtifactBacked(s Store) bool {
	ab, ok := s.(ArtifactBacked)
	return ok && ab.ArtifactBacked()
}
