package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"plotweave/pkg/config"
	"plotweave/pkg/outline"
)

func fakeSolver(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "clingo")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func outlinesConfig(t *testing.T, binary string) *config.Config {
	cfg := &config.Config{}
	cfg.Solver.Binary = binary
	cfg.Solver.Programs = []string{"plotgen.lp"}
	cfg.Paths.Outlines = filepath.Join(t.TempDir(), "outlines.txt")
	return cfg
}

func TestRunOutlinesUnsatisfiable(t *testing.T) {
	cfg := outlinesConfig(t, fakeSolver(t, "echo Solving...\necho UNSATISFIABLE\nexit 20"))
	if err := runOutlines(context.Background(), cfg, nil); err != nil {
		t.Fatalf("runOutlines() = %v, want nil", err)
	}
	data, err := os.ReadFile(cfg.Paths.Outlines)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("outline file = %q, want empty", data)
	}
}

func TestRunOutlines(t *testing.T) {
	script := `echo "Answer: 1"
echo "scene_performs_function(0,introduce_character) scene_performs_function(1,resolve_conflict)"
echo SATISFIABLE
exit 30`
	cfg := outlinesConfig(t, fakeSolver(t, script))
	if err := runOutlines(context.Background(), cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := outline.LoadFile(cfg.Paths.Outlines)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].String() != "introduce_character,resolve_conflict" {
		t.Errorf("outlines = %v", got)
	}
}

func TestRunOutlinesSolverFailure(t *testing.T) {
	cfg := outlinesConfig(t, fakeSolver(t, "echo 'error: syntax error' >&2\nexit 65"))
	if err := runOutlines(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected solver failure")
	}
	if _, err := os.Stat(cfg.Paths.Outlines); !os.IsNotExist(err) {
		t.Errorf("outline file written after failure: %v", err)
	}
}
