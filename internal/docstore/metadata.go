package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/firefly-engineering/desklab/internal/logging"
)

const (
	DefaultImageName = "Unnamed Image"
	DefaultImageDesc = "Undescribed Image"
)

// ImageMetadata is the descriptor shown for a base or saved image.
type ImageMetadata struct {
	Name string `json:"Name"`
	Desc string `json:"Desc"`
}

// DefaultMetadata is used whenever a stored descriptor is absent or unusable.
func DefaultMetadata() ImageMetadata {
	return ImageMetadata{Name: DefaultImageName, Desc: DefaultImageDesc}
}

// DecodeMetadata parses a descriptor. Anything other than a JSON object with
// string Name and Desc yields DefaultMetadata.
func DecodeMetadata(data []byte) ImageMetadata {
	var raw struct {
		Name *string `json:"Name"`
		Desc *string `json:"Desc"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.Name == nil || raw.Desc == nil {
		return DefaultMetadata()
	}
	return ImageMetadata{Name: *raw.Name, Desc: *raw.Desc}
}

// EncodeMetadata renders a descriptor as JSON.
func EncodeMetadata(m ImageMetadata) []byte {
	data, _ := json.Marshal(m)
	return data
}

// ReadMetadata loads the descriptor at ref. It never fails: store errors are
// logged and the default is returned.
func ReadMetadata(ctx context.Context, s Store, ref Ref) ImageMetadata {
	data, err := s.Get(ctx, ref)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Warn("failed to read image metadata", "ref", ref.String(), "error", err)
		}
		return DefaultMetadata()
	}
	return DecodeMetadata(data)
}

// WriteMetadata stores a descriptor at ref.
func WriteMetadata(ctx context.Context, s Store, ref Ref, m ImageMetadata) error {
	return s.Put(ctx, ref, EncodeMetadata(m))
}
