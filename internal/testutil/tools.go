package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// RequireShell skips the test on platforms without /bin/sh.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
}

// ShellTool returns a command template that runs script with the input path
// as $0 and the output path as $1.
func ShellTool(script string) []string {
	return []string{"/bin/sh", "-c", script, "{input}", "{output}"}
}

// Fake tools mirroring the behaviour of the real rule transformers closely
// enough for the harness: each reads {input} and writes {output}.
var (
	// CopyTool copies its input unchanged.
	CopyTool = ShellTool(`cat "$0" > "$1"`)

	// SortTool writes its input sorted, like the reprinter.
	SortTool = ShellTool(`LC_ALL=C sort "$0" > "$1"`)

	// ReverseSortTool writes its input reverse-sorted, so only canonicalization makes it comparable.
	ReverseSortTool = ShellTool(`LC_ALL=C sort -r "$0" > "$1"`)

	// DropFirstTool drops the first line of its input.
	DropFirstTool = ShellTool(`tail -n +2 "$0" > "$1"`)

	// FailTool writes a diagnostic and exits 3.
	FailTool = ShellTool(`echo "tool failed" >&2; exit 3`)

	// SlowTool sleeps far beyond any test timeout.
	SlowTool = ShellTool(`sleep 30; cat "$0" > "$1"`)
)

// AppendTool returns a tool that copies its input and appends line.
func AppendTool(line string) []string {
	return ShellTool(`cat "$0" > "$1"; echo '` + line + `' >> "$1"`)
}

// WriteLines writes lines (newline-terminated) to dir/name and returns the path.
func WriteLines(t testing.TB, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadLines reads a file written by a fake tool.
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
