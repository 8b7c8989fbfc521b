package ice

import "testing"

func TestResolveRoleConflictSwitchesLowerTieBreaker(t *testing.T) {
	// Controlling with the smaller tie-breaker switches to Controlled,
	// RFC 8445 Section 7.3.1.1.
	got := resolveRoleConflict(Controlling, 1, 2)
	if got != Controlled {
		t.Fatalf("expected Controlling with smaller tie-breaker to switch, got %s", got)
	}
	got = resolveRoleConflict(Controlling, 2, 1)
	if got != Controlling {
		t.Fatalf("expected Controlling with larger tie-breaker to keep role, got %s", got)
	}
}

func TestResolveRoleConflictControlledSide(t *testing.T) {
	got := resolveRoleConflict(Controlled, 1, 2)
	if got != Controlled {
		t.Fatalf("expected Controlled with larger remote tie-breaker to keep role, got %s", got)
	}
	got = resolveRoleConflict(Controlled, 2, 1)
	if got != Controlling {
		t.Fatalf("expected Controlled with smaller remote tie-breaker to switch, got %s", got)
	}
}

func TestRoleOpposite(t *testing.T) {
	if Controlling.Opposite() != Controlled {
		t.Fatal("expected Controlling.Opposite() == Controlled")
	}
	if Controlled.Opposite() != Controlling {
		t.Fatal("expected Controlled.Opposite() == Controlling")
	}
}

func TestNewTieBreakerIsRandomized(t *testing.T) {
	a := newTieBreaker()
	b := newTieBreaker()
	if a == b {
		t.Fatal("expected two generated tie-breakers to differ (got a collision, vanishingly unlikely)")
	}
}
