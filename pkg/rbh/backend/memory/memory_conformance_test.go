package memory

import (
	"testing"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/backendtest"
)

// TestConformance runs the shared backend conformance suite against the
// in-memory implementation.
func TestConformance(t *testing.T) {
	backendtest.RunConformanceSuite(t, func(t *testing.T) rbh.Backend {
		backend := New()
		t.Cleanup(func() { backend.Close() })
		return backend
	})
}
