package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"deskrelay/internal/types"
)

func regSession(display int) *Session {
	return New(uuid.New(), display, newFakeTransport(4), staticSource(16, 16), &fakeInjector{}, Config{})
}

func TestRegistryCapacity(t *testing.T) {
	reg := NewRegistry(2)
	a, b := regSession(0), regSession(1)
	if err := reg.Add(a, false); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := reg.Add(b, false); err != nil {
		t.Fatalf("second add: %v", err)
	}

	c := regSession(2)
	if err := reg.Add(c, false); !errors.Is(err, types.ErrCapacity) {
		t.Errorf("add past limit: err = %v, want capacity error", err)
	}
	if reg.Len() != 2 {
		t.Errorf("len = %d, want 2", reg.Len())
	}

	// Removing one frees a slot.
	reg.Remove(a)
	if err := reg.Add(c, false); err != nil {
		t.Errorf("add after remove: %v", err)
	}
}

func TestRegistryExclusiveDisplayClaim(t *testing.T) {
	reg := NewRegistry(10)
	owner := regSession(0)
	if err := reg.Add(owner, true); err != nil {
		t.Fatalf("exclusive add: %v", err)
	}

	if err := reg.Add(regSession(0), false); !errors.Is(err, types.ErrDisplayBusy) {
		t.Errorf("add on claimed display: err = %v, want display busy", err)
	}
	if err := reg.Add(regSession(1), true); err != nil {
		t.Errorf("exclusive add on free display: %v", err)
	}

	reg.Remove(owner)
	if err := reg.Add(regSession(0), true); err != nil {
		t.Errorf("re-claim after release: %v", err)
	}
}

func TestRegistrySharedSessionsCoexist(t *testing.T) {
	reg := NewRegistry(10)
	for i := 0; i < 5; i++ {
		if err := reg.Add(regSession(0), false); err != nil {
			t.Fatalf("shared add %d: %v", i, err)
		}
	}
	if reg.Len() != 5 {
		t.Errorf("len = %d, want 5", reg.Len())
	}
}

func TestRegistryRemoveOnlyReleasesOwnClaim(t *testing.T) {
	reg := NewRegistry(10)
	owner := regSession(0)
	if err := reg.Add(owner, true); err != nil {
		t.Fatal(err)
	}

	// A stale session on the same display must not release the owner's claim.
	stranger := regSession(0)
	reg.Remove(stranger)
	if err := reg.Add(regSession(0), false); !errors.Is(err, types.ErrDisplayBusy) {
		t.Errorf("claim survived stranger removal: err = %v, want display busy", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(10)
	s := regSession(0)
	if _, ok := reg.Get(s.ID); ok {
		t.Error("lookup before add succeeded")
	}
	if err := reg.Add(s, false); err != nil {
		t.Fatal(err)
	}
	got, ok := reg.Get(s.ID)
	if !ok || got != s {
		t.Errorf("Get = %v, %v", got, ok)
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != s.ID.String() {
		t.Errorf("IDs = %v", ids)
	}
}
