package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, dir string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	base := []string{"--store", "file", "--data-dir", dir, "--lang", "en"}
	code := run(append(base, args...), &out, &errOut, make(chan os.Signal))
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// addedID pulls the card ID out of "Added card <id>".
func addedID(t *testing.T, r result) string {
	t.Helper()
	fields := strings.Fields(strings.TrimSpace(r.stdout))
	if r.code != 0 || len(fields) != 3 {
		t.Fatalf("add: code %d, stdout %q, stderr %q", r.code, r.stdout, r.stderr)
	}
	return fields[2]
}

func TestVersion(t *testing.T) {
	r := runCLI(t, t.TempDir(), "--version")
	if r.code != 0 || !strings.HasPrefix(r.stdout, "noteboard dev") {
		t.Errorf("version: code %d, stdout %q", r.code, r.stdout)
	}
}

func TestStatusEmptyBoard(t *testing.T) {
	t.Chdir(t.TempDir())
	r := runCLI(t, t.TempDir())
	if r.code != 0 {
		t.Fatalf("code %d, stderr %q", r.code, r.stderr)
	}
	for _, want := range []string{"NEW (0/3)", "IN PROCESS (0/5)", "DONE (0/-)", "(empty)", "0 cards"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("status missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestCardLifecycle(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	id := addedID(t, runCLI(t, dir, "--add", "Groceries"))

	r := runCLI(t, dir, "--status")
	if !strings.Contains(r.stdout, "["+id+"] Groceries  0/3 (0%)") {
		t.Fatalf("card not persisted:\n%s", r.stdout)
	}

	// One of three items stays in New.
	r = runCLI(t, dir, "--toggle", id+":0")
	if r.code != 0 || strings.Contains(r.stdout, "Moved") {
		t.Fatalf("toggle 0: code %d, stdout %q, stderr %q", r.code, r.stdout, r.stderr)
	}

	// Two of three moves the card to In process.
	r = runCLI(t, dir, "--toggle", id+":1")
	if r.code != 0 || !strings.Contains(r.stdout, "Moved card "+id+" to In process") {
		t.Fatalf("toggle 1: code %d, stdout %q, stderr %q", r.code, r.stdout, r.stderr)
	}

	r = runCLI(t, dir, "--move", id+":done")
	if r.code != 0 {
		t.Fatalf("move: code %d, stderr %q", r.code, r.stderr)
	}

	r = runCLI(t, dir, "--status")
	if !strings.Contains(r.stdout, "DONE (1/-)") || !strings.Contains(r.stdout, "Completed: ") {
		t.Errorf("card not done:\n%s", r.stdout)
	}

	r = runCLI(t, dir, "--move", id+":new")
	if r.code != 1 || !strings.Contains(r.stderr, "card is done") {
		t.Errorf("move out of done: code %d, stderr %q", r.code, r.stderr)
	}

	r = runCLI(t, dir, "--remove", "done:0")
	if r.code != 0 || !strings.Contains(r.stdout, "Removed card 0 from Done") {
		t.Errorf("remove: code %d, stdout %q, stderr %q", r.code, r.stdout, r.stderr)
	}
}

func TestNewColumnCapacity(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	addedID(t, runCLI(t, dir, "--cap-new", "1", "--add", "one"))
	r := runCLI(t, dir, "--cap-new", "1", "--add", "two")
	if r.code != 1 || r.stderr == "" {
		t.Errorf("second add: code %d, stderr %q", r.code, r.stderr)
	}
}

func TestCommandErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad flag", []string{"--nope"}, 2},
		{"bad store", []string{"--store", "tape"}, 1},
		{"remove without index", []string{"--remove", "new"}, 1},
		{"remove unknown column", []string{"--remove", "archive:0"}, 1},
		{"remove out of range", []string{"--remove", "new:4"}, 1},
		{"move unknown card", []string{"--move", "missing:done"}, 1},
		{"toggle bad index", []string{"--toggle", "missing:x"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := runCLI(t, dir, tt.args...); r.code != tt.code {
				t.Errorf("code = %d, want %d (stderr %q)", r.code, tt.code, r.stderr)
			}
		})
	}
}

func TestRussianOutput(t *testing.T) {
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	code := run([]string{"--store", "memory", "--lang", "ru"}, &out, &errOut, make(chan os.Signal))
	if code != 0 {
		t.Fatalf("code %d, stderr %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "В ПРОЦЕССЕ") || !strings.Contains(out.String(), "0 карточек") {
		t.Errorf("output not localized:\n%s", out.String())
	}
}
