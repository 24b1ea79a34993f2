// Package users stores accounts and checks passwords. All accounts live in
// one JSON document in the document store, keyed by user name.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

const (
	// DefaultAdmin is the account created when the user document is empty.
	DefaultAdmin = "admin"

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
)

// Record is one account in the persisted document.
type Record struct {
	Password string     `json:"password"`
	Security authz.Role `json:"security"`
	Comment  string     `json:"comment"`
}

// Document is the persisted account table.
type Document map[string]Record

// User is an account without its password hash.
type User struct {
	Name    string     `json:"name"`
	Role    authz.Role `json:"role"`
	Comment string     `json:"comment"`
}

// Store manages accounts on a document store.
type Store struct {
	docs docstore.Store
	ref  docstore.Ref
	cost int
	mu   sync.Mutex

	decoyOnce sync.Once
	decoy     []byte
}

// NewStore creates an account store at ref.
func NewStore(docs docstore.Store, ref docstore.Ref) *Store {
	return &Store{docs: docs, ref: ref, cost: bcrypt.DefaultCost}
}

// SetCost changes the bcrypt cost for new hashes.
func (s *Store) SetCost(cost int) {
	s.cost = cost
}

func (s *Store) load(ctx context.Context) (Document, error) {
	data, err := s.docs.Get(ctx, s.ref)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("user document %s is malformed: %w", s.ref, err)
	}
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}
	if err := s.docs.Put(ctx, s.ref, data); err != nil {
		return fmt.Errorf("failed to store users: %w", err)
	}
	return nil
}

func (s *Store) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", deskerrors.ValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func (s *Store) decoyHash() []byte {
	s.decoyOnce.Do(func() {
		s.decoy, _ = bcrypt.GenerateFromPassword([]byte("desklab-decoy"), s.cost)
	})
	return s.decoy
}

// Authenticate checks a user's password and returns the subject. Unknown
// users and wrong passwords produce the same Unauthorized error.
func (s *Store) Authenticate(ctx context.Context, name, password string) (authz.Subject, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return authz.Subject{}, err
	}
	rec, ok := doc[name]
	if !ok {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.decoyHash(), []byte(password))
		return authz.Subject{}, deskerrors.Unauthorized()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)); err != nil {
		return authz.Subject{}, deskerrors.Unauthorized()
	}
	return authz.Subject{Name: name, Role: rec.Security}, nil
}

// Add creates an account. Existing accounts are not replaced.
func (s *Store) Add(ctx context.Context, name, password string, role authz.Role, comment string) error {
	if err := config.ValidateUserName(name); err != nil {
		return deskerrors.ValidationError(err.Error())
	}
	if !role.Valid() {
		return deskerrors.ValidationError(fmt.Sprintf("unknown role %q", role))
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc[name]; ok {
		return deskerrors.ValidationError(fmt.Sprintf("user %q already exists", name))
	}
	doc[name] = Record{Password: hash, Security: role, Comment: comment}
	return s.save(ctx, doc)
}

// SetPassword replaces a user's password.
func (s *Store) SetPassword(ctx context.Context, name, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	rec, ok := doc[name]
	if !ok {
		return deskerrors.UserNotFound(name)
	}
	rec.Password = hash
	doc[name] = rec
	return s.save(ctx, doc)
}

// Get returns one account.
func (s *Store) Get(ctx context.Context, name string) (User, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	rec, ok := doc[name]
	if !ok {
		return User{}, deskerrors.UserNotFound(name)
	}
	return User{Name: name, Role: rec.Security, Comment: rec.Comment}, nil
}

// List returns all accounts ordered by name.
func (s *Store) List(ctx context.Context) ([]User, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]User, 0, len(doc))
	for name, rec := range doc {
		list = append(list, User{Name: name, Role: rec.Security, Comment: rec.Comment})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// EnsureAdmin creates the default admin account with password when no
// accounts exist. It reports whether the account was created.
func (s *Store) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if len(doc) > 0 {
		return false, nil
	}
	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}
	doc[DefaultAdmin] = Record{Password: hash, Security: authz.RoleAdmin, Comment: "Default ADMIN account"}
	if err := s.save(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}
