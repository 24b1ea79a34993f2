package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/config"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{"dockerlabconfig:container", Ref{"dockerlabconfig", "container"}, false},
		{"registry:5000/lab:v1", Ref{"registry:5000/lab", "v1"}, false},
		{"nocolon", Ref{}, true},
		{":tag", Ref{}, true},
		{"name:", Ref{}, true},
		{"registry:5000/lab", Ref{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

// storeContract runs the behavior every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	ref := Ref{Name: "dockerlabconfig", Tag: "container"}

	_, err := s.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, ref, []byte(`{"alice":{}}`)))
	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"alice":{}}`, string(got))

	require.NoError(t, s.Put(ctx, ref, []byte(`{"bob":{}}`)))
	got, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bob":{}}`, string(got), "put replaces the whole document")

	other := Ref{Name: "dockerlabconfig", Tag: "auth"}
	_, err = s.Get(ctx, other)
	assert.ErrorIs(t, err, ErrNotFound, "refs are independent")
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_Err(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.Err = boom

	_, err := s.Get(context.Background(), Ref{"a", "b"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Put(context.Background(), Ref{"a", "b"}, nil), boom)
	assert.Equal(t, 1, s.Gets)
	assert.Equal(t, 1, s.Puts)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFileStore_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), Ref{"userimages_alice", "c1"}, []byte(`{}`)))

	_, err = os.Stat(filepath.Join(root, "userimages_alice", "c1.json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "userimages_alice"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_StaysInRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(filepath.Join(root, "docs"))
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), Ref{"../../escape", "x"}, []byte(`{}`)))

	_, err = os.Stat(filepath.Join(root, "escape"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "docs", "escape", "x.json"))
	assert.NoError(t, err)
}

func TestFileStore_ConcurrentPuts(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ref := Ref{"dockerlabconfig", "container"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put(context.Background(), ref, []byte(`{"k":"v"}`)))
		}()
	}
	wg.Wait()

	got, err := s.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(got))
}

func TestImageStore(t *testing.T) {
	rt := runtime.NewMockRuntime()
	s := NewImageStore(rt)
	storeContract(t, s)

	assert.True(t, IsArtifactBacked(s))
	assert.Len(t, rt.GetCallsFor("ImportImage"), 1, "document image is created once")
	assert.Len(t, rt.GetCallsFor("Commit"), 2)

	for _, c := range rt.GetCallsFor("Create") {
		opts := c.Args[0].(runtime.CreateOptions)
		assert.False(t, rt.HasContainer(opts.Name), "throwaway container removed")
	}
}

func TestImageStore_RuntimeFailure(t *testing.T) {
	rt := runtime.NewMockRuntime()
	s := NewImageStore(rt)
	rt.SetError("InspectImage", errors.New("daemon down"))

	_, err := s.Get(context.Background(), Ref{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, deskerrors.ExitExternalFailure, deskerrors.GetExitCode(err))
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestImageStore_CommitFailureRemovesContainer(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.AddImage("dockerlabconfig:container", "")
	s := NewImageStore(rt)
	rt.SetError("Commit", errors.New("disk full"))

	err := s.Put(context.Background(), Ref{"dockerlabconfig", "container"}, []byte(`{}`))
	require.Error(t, err)
	assert.Len(t, rt.GetCallsFor("Remove"), 1)
}

func TestIsArtifactBacked(t *testing.T) {
	assert.False(t, IsArtifactBacked(NewMemoryStore()))
	assert.False(t, IsArtifactBacked(&FileStore{}))
	assert.True(t, IsArtifactBacked(NewImageStore(runtime.NewMockRuntime())))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("DESKLAB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DESKLAB_TEST_REDIS_URL not set")
	}

	s, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	ref := Ref{Name: "dockerlabconfig", Tag: "container"}
	require.NoError(t, s.rdb.Del(ctx, redisKey(ref), redisKey(Ref{"dockerlabconfig", "auth"})).Err())
	storeContract(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DESKLAB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DESKLAB_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `DELETE FROM desklab_documents WHERE name = 'dockerlabconfig'`)
	require.NoError(t, err)
	storeContract(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, &config.StoreConfig{Backend: config.BackendFile, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, &config.StoreConfig{Backend: config.BackendImage}, runtime.NewMockRuntime())
	require.NoError(t, err)
	assert.IsType(t, &ImageStore{}, s)

	_, err = Open(ctx, &config.StoreConfig{Backend: "s3"}, nil)
	assert.Error(t, err)
}
