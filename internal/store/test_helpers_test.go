package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/iadas/internal/testutil"
)

// createTestStore creates a store with deterministic ids and clock.
func createTestStore(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.DefaultTime)
	ids := testutil.NewSequenceIDs("upd")
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path, WithIDGenerator(ids.Generate), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
