package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "abc", RunID("abc")},
		{"Stage", KeyStage, "site", Stage("site")},
		{"Tool", KeyTool, "pdoc3", Tool("pdoc3")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Source", KeySource, "a", Source("a")},
		{"Target", KeyTarget, "b", Target("b")},
		{"Branch", KeyBranch, "gh-pages", Branch("gh-pages")},
		{"Remote", KeyRemote, "origin", Remote("origin")},
		{"Commit", KeyCommit, "deadbeef", Commit("deadbeef")},
		{"Repository", KeyRepo, "o/r", Repository("o/r")},
		{"Outcome", KeyOutcome, "success", Outcome("success")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s key mismatch: got %s want %s", c.name, c.attr.Key, c.attrKey)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s value mismatch: got %s want %s", c.name, c.attr.Value.String(), c.attrVal)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if got := ExitCode(2).Value.Int64(); got != 2 {
		t.Fatalf("ExitCode value = %d", got)
	}
	if got := Count(7).Value.Int64(); got != 7 {
		t.Fatalf("Count value = %d", got)
	}
	if got := Duration(1500 * time.Microsecond).Value.Float64(); got != 1.5 {
		t.Fatalf("Duration value = %v", got)
	}
}

func TestErrorHelper(t *testing.T) {
	if Error(nil).Value.String() != "" {
		t.Fatal("nil error should yield empty value")
	}
	if Error(errors.New("boom")).Value.String() != "boom" {
		t.Fatal("error message not preserved")
	}
}
