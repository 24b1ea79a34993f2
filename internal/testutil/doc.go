// Package testutil provides a wired test environment and fixtures.
//
// # Test Environment
//
// NewTestEnv builds a full App on a mock runtime, an in-memory document
// store and a fake clock, and installs it as app.Default:
//
//	env := testutil.NewTestEnv(t)
//	env.AddUser("alice", "password1", authz.RoleUser)
//	sid, port := env.Launch("alice")
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//	fixtures/registry_document.json
//
// Helper functions load and parse them:
//
//	cfg, err := testutil.ValidConfig()
//	err := testutil.InvalidConfig()
//	doc, err := testutil.RegistryDocument()
package testutil
