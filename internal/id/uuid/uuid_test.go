// Package uuid includes tests for run identifiers.
package uuid

import "testing"

// TestNewRunID ensures run IDs are unique v7 UUIDs.
func TestNewRunID(t *testing.T) {
	t.Parallel()

	id1, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	id2, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if id1.Version() != 7 {
		t.Fatalf("expected version 7, got %d", id1.Version())
	}
}
