// Package backendtest provides a conformance test suite for backend
// implementations.
//
// All backends (memory, badger, mongo) should pass these tests. The
// suite verifies that every implementation satisfies the Backend
// behavioral contract: event lowering, namespace edge handling, query
// unwinding and projection.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    backendtest.RunConformanceSuite(t, func(t *testing.T) rbh.Backend {
//	        return memory.New()
//	    })
//	}
//
// The factory function receives *testing.T so it can call t.TempDir()
// for backends that need filesystem paths (e.g. BadgerDB) and t.Cleanup
// for teardown.
package backendtest
