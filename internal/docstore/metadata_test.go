package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ImageMetadata
	}{
		{"valid", `{"Name":"Xfce","Desc":"Light desktop"}`, ImageMetadata{"Xfce", "Light desktop"}},
		{"empty strings kept", `{"Name":"","Desc":""}`, ImageMetadata{"", ""}},
		{"empty comment", ``, DefaultMetadata()},
		{"not json", `not json`, DefaultMetadata()},
		{"missing desc", `{"Name":"only"}`, DefaultMetadata()},
		{"wrong type", `{"Name":1,"Desc":"x"}`, DefaultMetadata()},
		{"array", `[1,2]`, DefaultMetadata()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeMetadata([]byte(tt.in)))
		})
	}
}

func TestEncodeMetadata_Quoting(t *testing.T) {
	m := ImageMetadata{Name: `He said "hi"`, Desc: "line\nbreak \\ slash"}

	got := DecodeMetadata(EncodeMetadata(m))
	assert.Equal(t, m, got)
}

func TestReadMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ref := Ref{"dockerlab", "xfce"}

	assert.Equal(t, DefaultMetadata(), ReadMetadata(ctx, s, ref), "absent")

	require.NoError(t, s.Put(ctx, ref, []byte("garbage")))
	assert.Equal(t, DefaultMetadata(), ReadMetadata(ctx, s, ref), "malformed")

	require.NoError(t, WriteMetadata(ctx, s, ref, ImageMetadata{"Xfce", "desc"}))
	assert.Equal(t, ImageMetadata{"Xfce", "desc"}, ReadMetadata(ctx, s, ref))

	s.Err = errors.New("store down")
	assert.Equal(t, DefaultMetadata(), ReadMetadata(ctx, s, ref), "store failure")
}
