package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/registry"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

func TestSave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sid, _, err := env.m.Launch(ctx, "alice", baseImage)
	require.NoError(t, err)

	ref, err := env.m.Save(ctx, "alice", sid, "Dev Box", "My box")
	require.NoError(t, err)
	assert.Equal(t, "userimages_alice:desklab-"+sid+"-base", ref)

	img, err := env.rt.InspectImage(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"Dev Box","Desc":"My box"}`, img.Comment)

	raw, ok := env.store.(*docstore.MemoryStore).Raw(docstore.MustParseRef(ref))
	require.True(t, ok)
	assert.JSONEq(t, `{"Name":"Dev Box","Desc":"My box"}`, string(raw))

	_, err = env.reg.GetFresh(ctx, "alice", sid)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.False(t, env.rt.HasContainer("desklab-"+sid))
}

func TestSaveOwnImageKeepsTag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.rt.AddImage("userimages_alice:dev", `{"Name":"Old","Desc":"Old"}`)

	sid, _, err := env.m.Launch(ctx, "alice", "userimages_alice:dev")
	require.NoError(t, err)

	ref, err := env.m.Save(ctx, "alice", sid, "New", "Updated")
	require.NoError(t, err)
	assert.Equal(t, "userimages_alice:dev", ref)
	assert.Equal(t, docstore.ImageMetadata{Name: "New", Desc: "Updated"}, env.m.ReadMetadata(ctx, ref))
}

func TestSaveMetadataIsEncodedNotConcatenated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sid, _, err := env.m.Launch(ctx, "alice", baseImage)
	require.NoError(t, err)

	ref, err := env.m.Save(ctx, "alice", sid, `Quote " box`, "line\nbreak")
	require.NoError(t, err)
	assert.Equal(t, docstore.ImageMetadata{Name: `Quote " box`, Desc: "line\nbreak"}, env.m.ReadMetadata(ctx, ref))
}

func TestSaveArtifactBackedStore(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	env := newTestEnvWithStore(t, rt, docstore.NewImageStore(rt))

	sid, _, err := env.m.Launch(ctx, "alice", baseImage)
	require.NoError(t, err)

	ref, err := env.m.Save(ctx, "alice", sid, "Dev Box", "My box")
	require.NoError(t, err)
	assert.Equal(t, docstore.ImageMetadata{Name: "Dev Box", Desc: "My box"}, env.m.ReadMetadata(ctx, ref))

	commits := 0
	for _, call := range rt.GetCallsFor("Commit") {
		if call.Args[1] == "userimages_alice" {
			commits++
		}
	}
	assert.Equal(t, 1, commits)
}

// failingPutStore rejects writes to documents whose name has prefix.
type failingPutStore struct {
	docstore.Store
	prefix string
}

func (s *failingPutStore) Put(ctx context.Context, ref docstore.Ref, doc []byte) error {
	if strings.HasPrefix(ref.Name, s.prefix) {
		return fmt.Errorf("write %s: connection refused", ref)
	}
	return s.Store.Put(ctx, ref, doc)
}

func TestSaveMetadataWriteFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	store := &failingPutStore{Store: docstore.NewMemoryStore(), prefix: "userimages_"}
	env := newTestEnvWithStore(t, rt, store)

	sid, hostPort, err := env.m.Launch(ctx, "alice", baseImage)
	require.NoError(t, err)

	_, err = env.m.Save(ctx, "alice", sid, "Dev Box", "My box")
	assert.Equal(t, deskerrors.ExitExternalFailure, deskerrors.GetExitCode(err))

	s, err := env.reg.GetFresh(ctx, "alice", sid)
	require.NoError(t, err)
	assert.Equal(t, hostPort, s.Port)
	assert.True(t, rt.HasContainer("desklab-"+sid))

	// A retry once the store recovers succeeds.
	store.prefix = "nothing-matches"
	ref, err := env.m.Save(ctx, "alice", sid, "Dev Box", "My box")
	require.NoError(t, err)
	assert.Equal(t, docstore.ImageMetadata{Name: "Dev Box", Desc: "My box"}, env.m.ReadMetadata(ctx, ref))
}

func TestSaveUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.m.Save(context.Background(), "alice", "nope", "n", "d")
	assert.Equal(t, deskerrors.ExitNotFound, deskerrors.GetExitCode(err))
	assert.Empty(t, env.rt.GetCallsFor("Commit"))
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.rt.AddImage("userimages_alice:dev", "")

	ref, err := env.m.Promote(ctx, "userimages_alice:dev", "", "Shared Dev", "For everyone")
	require.NoError(t, err)
	assert.Equal(t, "dockerlab:dev", ref)
	assert.True(t, env.rt.HasImage("dockerlab:dev"))
	assert.Equal(t, docstore.ImageMetadata{Name: "Shared Dev", Desc: "For everyone"}, env.m.ReadMetadata(ctx, ref))

	ref, err = env.m.Promote(ctx, "userimages_alice:dev", "stable", "Stable", "Pinned")
	require.NoError(t, err)
	assert.Equal(t, "dockerlab:stable", ref)

	_, err = env.m.Promote(ctx, "userimages_alice:missing", "", "n", "d")
	assert.Equal(t, deskerrors.ExitNotFound, deskerrors.GetExitCode(err))

	_, err = env.m.Promote(ctx, "userimages_alice:dev", "bad tag", "n", "d")
	assert.Equal(t, deskerrors.ExitGeneralError, deskerrors.GetExitCode(err))
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.rt.AddImage("userimages_alice:dev", "")

	require.NoError(t, env.m.DeleteImage(ctx, "userimages_alice:dev"))
	assert.False(t, env.rt.HasImage("userimages_alice:dev"))

	err := env.m.DeleteImage(ctx, "userimages_alice:dev")
	assert.Equal(t, deskerrors.ExitNotFound, deskerrors.GetExitCode(err))
}

func TestImageOwner(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		ref   string
		owner string
		ok    bool
	}{
		{"userimages_alice:dev", "alice", true},
		{"userimages_bob", "bob", true},
		{"dockerlab:base", "", false},
		{"userimages_:x", "", false},
		{"other/userimages_alice:dev", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			owner, ok := env.m.ImageOwner(tt.ref)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestReadMetadataDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	assert.Equal(t, docstore.DefaultMetadata(), env.m.ReadMetadata(ctx, "dockerlab:base"))
	assert.Equal(t, docstore.DefaultMetadata(), env.m.ReadMetadata(ctx, "not a ref"))

	require.NoError(t, env.store.Put(ctx, docstore.MustParseRef("dockerlab:odd"), []byte(`{"Name":"only name"}`)))
	assert.Equal(t, docstore.DefaultMetadata(), env.m.ReadMetadata(ctx, "dockerlab:odd"))
}

func TestImageListings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.rt.AddImage("userimages_alice:dev", "")
	env.rt.AddImage("userimages_bob:other", "")
	require.NoError(t, docstore.WriteMetadata(ctx, env.store, docstore.MustParseRef("userimages_alice:dev"),
		docstore.ImageMetadata{Name: "Dev", Desc: "Mine"}))

	base, err := env.m.BaseImages(ctx)
	require.NoError(t, err)
	require.Len(t, base, 1)
	assert.Equal(t, baseImage, base[0].Ref)
	assert.Equal(t, docstore.DefaultMetadata(), base[0].Metadata)

	mine, err := env.m.UserImages(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "userimages_alice:dev", mine[0].Ref)
	assert.Equal(t, "Dev", mine[0].Metadata.Name)
}

func TestSessionMetadata(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.rt.AddImage("userimages_alice:dev", "")
	require.NoError(t, docstore.WriteMetadata(ctx, env.store, docstore.MustParseRef("userimages_alice:dev"),
		docstore.ImageMetadata{Name: "Dev", Desc: "Mine"}))

	sid, _, err := env.m.Launch(ctx, "alice", "userimages_alice:dev")
	require.NoError(t, err)

	meta, err := env.m.SessionMetadata(ctx, "alice", sid)
	require.NoError(t, err)
	assert.Equal(t, docstore.ImageMetadata{Name: "Dev", Desc: "Mine"}, meta)

	_, err = env.m.SessionMetadata(ctx, "bob", sid)
	assert.Equal(t, deskerrors.ExitNotFound, deskerrors.GetExitCode(err))
}
