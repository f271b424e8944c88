package testutil

import "testing"

// Given opens a scenario subtest named "Given <desc>". Scenario setup lives in
// fn; nest When and Then inside it.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

// When names the action under test.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

// Then groups the assertions about one observable outcome, so a failing
// outcome is reported by name without stopping its siblings.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
