package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

func newTestStore(t *testing.T) (*Store, *docstore.MemoryStore) {
	t.Helper()
	mem := docstore.NewMemoryStore()
	s := NewStore(mem, docstore.MustParseRef("dockerlabconfig:auth"))
	s.SetCost(bcrypt.MinCost)
	return s, mem
}

func TestAddAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(ctx, "alice", "correct horse", authz.RoleUser, "Alice"))

	subject, err := s.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, authz.Subject{Name: "alice", Role: authz.RoleUser}, subject)

	_, err = s.Authenticate(ctx, "alice", "wrong password")
	assert.Equal(t, deskerrors.ExitUnauthorized, deskerrors.GetExitCode(err))

	_, err = s.Authenticate(ctx, "nobody", "correct horse")
	assert.Equal(t, deskerrors.ExitUnauthorized, deskerrors.GetExitCode(err))
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(ctx, "alice", "password1", authz.RoleUser, ""))

	tests := []struct {
		name     string
		user     string
		password string
		role     authz.Role
	}{
		{"duplicate", "alice", "password1", authz.RoleUser},
		{"short password", "bob", "short", authz.RoleUser},
		{"bad name", "Bob!", "password1", authz.RoleUser},
		{"bad role", "bob", "password1", "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(ctx, tt.user, tt.password, tt.role, "")
			assert.Equal(t, deskerrors.ExitGeneralError, deskerrors.GetExitCode(err))
		})
	}
}

func TestDocumentShape(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	require.NoError(t, s.Add(ctx, "alice", "password1", authz.RoleAdmin, "Ops"))

	raw, ok := mem.Raw(docstore.MustParseRef("dockerlabconfig:auth"))
	require.True(t, ok)
	assert.Contains(t, string(raw), `"security":"admin"`)
	assert.Contains(t, string(raw), `"comment":"Ops"`)
	assert.NotContains(t, string(raw), "password1")
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(ctx, "alice", "password1", authz.RoleUser, ""))
	require.NoError(t, s.SetPassword(ctx, "alice", "password2"))

	_, err := s.Authenticate(ctx, "alice", "password1")
	assert.Error(t, err)
	_, err = s.Authenticate(ctx, "alice", "password2")
	assert.NoError(t, err)

	err = s.SetPassword(ctx, "bob", "password2")
	assert.Equal(t, deskerrors.ExitNotFound, deskerrors.GetExitCode(err))
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	created, err := s.EnsureAdmin(ctx, "bootstrap-secret")
	require.NoError(t, err)
	assert.True(t, created)

	u, err := s.Get(ctx, DefaultAdmin)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, u.Role)

	created, err = s.EnsureAdmin(ctx, "another-secret")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.Authenticate(ctx, DefaultAdmin, "bootstrap-secret")
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(ctx, "carol", "password1", authz.RoleUser, ""))
	require.NoError(t, s.Add(ctx, "alice", "password1", authz.RoleAdmin, ""))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Name)
	assert.Equal(t, "carol", list[1].Name)
}

func TestMalformedDocument(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	require.NoError(t, mem.Put(ctx, docstore.MustParseRef("dockerlabconfig:auth"), []byte("not json")))

	_, err := s.Authenticate(ctx, "alice", "password1")
	require.Error(t, err)
	assert.NotEqual(t, deskerrors.ExitUnauthorized, deskerrors.GetExitCode(err))
}
