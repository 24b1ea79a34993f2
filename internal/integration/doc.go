// Package integration provides a test harness for integration tests
// that drive a real container runtime.
//
// Integration tests are skipped unless DESKLAB_INTEGRATION_TESTS is set.
// They require a docker or podman CLI on PATH and permission to use it.
// DESKLAB_TEST_IMAGE selects the image sessions are launched from
// (default busybox:latest); the harness tags it into a private base
// repository so tests never touch real session images.
//
// # Test Harness
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    id, port := h.Launch("alice")
//	    // exercise the session...
//
//	    // Containers, images and registry entries are removed via t.Cleanup
//	}
//
// # Running Integration Tests
//
//	DESKLAB_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration
