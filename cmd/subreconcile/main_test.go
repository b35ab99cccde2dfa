package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MrWong99/subreconcile/internal/review"
)

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// testConfig writes a config using the file backend inside dir.
func testConfig(t *testing.T, dir string) string {
	t.Helper()
	yaml := "log_level: warn\nstorage:\n  backend: file\n  dir: " + filepath.Join(dir, "store") + "\n"
	return createTestFile(t, dir, "config.yaml", yaml)
}

// runCLI runs the command line with empty stdin and returns exit code,
// stdout and stderr.
func runCLI(t *testing.T, cfgPath string, args ...string) (int, string, string) {
	t.Helper()
	return runCLIInput(t, cfgPath, "", args...)
}

func runCLIInput(t *testing.T, cfgPath, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", cfgPath}, args...),
		strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	code, out, errOut := runCLI(t, cfgPath, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestVersion(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, testConfig(t, dir), "version")
	if !strings.Contains(out, version) {
		t.Errorf("version output %q does not contain %q", out, version)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, testConfig(t, dir), "check")
	if !strings.Contains(out, `"status": "ok"`) {
		t.Errorf("check output = %s, want ok status", out)
	}
}

func TestLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "subreconcile.log")
	yaml := "log_level: debug\nlog_file:\n  path: " + logPath + "\nstorage:\n  backend: memory\n"
	cfg := createTestFile(t, dir, "config.yaml", yaml)

	_, _, errOut := runCLI(t, cfg, "dict", "add", "Whispers", "wispers")
	if errOut != "" {
		t.Errorf("stderr = %q, want logs in the file only", errOut)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"app ready"`) {
		t.Errorf("log file lacks JSON app ready line:\n%s", data)
	}
}

func TestMissingConfig(t *testing.T) {
	code, _, errOut := runCLI(t, filepath.Join(t.TempDir(), "absent.yaml"), "version")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, "not found") {
		t.Errorf("stderr = %q, want a not found message", errOut)
	}
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	orig := createTestFile(t, dir, "orig.txt", "abc")
	corr := createTestFile(t, dir, "corr.txt", "axc")

	out := mustRun(t, cfg, "diff", orig, corr)
	if !strings.Contains(out, `+[1] "b" -> "x"`) {
		t.Errorf("diff output missing change group:\n%s", out)
	}
	if !strings.Contains(out, "final: axc") {
		t.Errorf("diff output missing final text:\n%s", out)
	}

	out = mustRun(t, cfg, "diff", "--json", orig, corr)
	if !strings.Contains(out, `"kind": "change"`) {
		t.Errorf("json output missing change group:\n%s", out)
	}
}

func TestReview(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	orig := createTestFile(t, dir, "orig.txt", "abc\nhello\nsame\n")
	corr := createTestFile(t, dir, "corr.txt", "axc\nhallo\nsame\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"accept all", nil, "axc\nhallo\nsame\n"},
		{"reject group", []string{"--reject", "0:1"}, "abc\nhallo\nsame\n"},
		{"keep original", []string{"--keep", "1"}, "axc\nhello\nsame\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"review", orig, corr}, tc.args...)
			if got := mustRun(t, cfg, args...); got != tc.want {
				t.Errorf("review = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("out file", func(t *testing.T) {
		out := filepath.Join(dir, "final.txt")
		mustRun(t, cfg, "review", orig, corr, "-o", out)
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "axc\nhallo\nsame\n" {
			t.Errorf("final file = %q", data)
		}
	})

	t.Run("bad reject", func(t *testing.T) {
		if code, _, _ := runCLI(t, cfg, "review", orig, corr, "--reject", "7"); code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	})
}

func TestDictLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	id := strings.TrimSpace(mustRun(t, cfg, "dict", "add", "Whispers", "wispers"))
	if id == "" {
		t.Fatal("dict add printed no id")
	}

	if got := mustRun(t, cfg, "dict", "apply", "the wispers"); got != "the Whispers\n" {
		t.Errorf("apply = %q, want %q", got, "the Whispers\n")
	}

	code, got, errOut := runCLIInput(t, cfg, "I hear wispers\nmore wispers", "dict", "apply")
	if code != 0 {
		t.Fatalf("apply from stdin exited %d: %s", code, errOut)
	}
	if got != "I hear Whispers\nmore Whispers\n" {
		t.Errorf("apply from stdin = %q, want %q", got, "I hear Whispers\nmore Whispers\n")
	}

	mustRun(t, cfg, "dict", "add-variant", id, "whisperz")
	if got := mustRun(t, cfg, "dict", "apply", "whisperz"); got != "Whispers\n" {
		t.Errorf("apply after add-variant = %q", got)
	}
	mustRun(t, cfg, "dict", "remove-variant", id, "whisperz")
	if got := mustRun(t, cfg, "dict", "apply", "whisperz"); got != "whisperz\n" {
		t.Errorf("apply after remove-variant = %q", got)
	}

	list := mustRun(t, cfg, "dict", "list")
	if !strings.Contains(list, "Whispers") || !strings.Contains(list, id) {
		t.Errorf("list output missing entry:\n%s", list)
	}

	export := filepath.Join(dir, "export.json")
	mustRun(t, cfg, "dict", "export", "-o", export)

	if code, _, _ := runCLI(t, cfg, "dict", "clear"); code != 1 {
		t.Errorf("clear without --yes exit code = %d, want 1", code)
	}
	mustRun(t, cfg, "dict", "clear", "--yes")
	if got := strings.TrimSpace(mustRun(t, cfg, "dict", "export")); got != "[]" {
		t.Errorf("export after clear = %q, want []", got)
	}

	mustRun(t, cfg, "dict", "import", export)
	if got := mustRun(t, cfg, "dict", "apply", "the wispers"); got != "the Whispers\n" {
		t.Errorf("apply after import = %q", got)
	}

	list = mustRun(t, cfg, "dict", "list", "--json")
	if strings.Contains(list, `"`+id+`"`) {
		t.Errorf("imported entry kept its old id %s:\n%s", id, list)
	}
	newID := between(list, `"id": "`, `"`)
	mustRun(t, cfg, "dict", "remove", newID)
	if got := strings.TrimSpace(mustRun(t, cfg, "dict", "export")); got != "[]" {
		t.Errorf("export after remove = %q, want []", got)
	}
}

func TestReviewLearn(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	orig := createTestFile(t, dir, "orig.txt", "I hear wispers\n")
	corr := createTestFile(t, dir, "corr.txt", "I hear whispers\n")

	mustRun(t, cfg, "review", "--learn", orig, corr)
	if got := mustRun(t, cfg, "dict", "apply", "more wispers"); got != "more whispers\n" {
		t.Errorf("apply after learn = %q, want %q", got, "more whispers\n")
	}
}

func TestPairLines(t *testing.T) {
	tests := []struct {
		name      string
		original  string
		corrected string
		want      []review.Pair
	}{
		{"equal length", "a\nb\n", "x\ny\n", []review.Pair{{"a", "x"}, {"b", "y"}}},
		{"crlf", "a\r\nb", "x\r\ny", []review.Pair{{"a", "x"}, {"b", "y"}}},
		{"corrected longer", "a", "x\ny", []review.Pair{{"a", "x"}, {"", "y"}}},
		{"both empty", "", "", []review.Pair{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := pairLines(tc.original, tc.corrected)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("pairLines = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseGroupRef(t *testing.T) {
	item, group, err := parseGroupRef("3:12")
	if err != nil || item != 3 || group != 12 {
		t.Errorf("parseGroupRef(3:12) = %d, %d, %v", item, group, err)
	}
	for _, bad := range []string{"3", "a:1", "1:b", ""} {
		if _, _, err := parseGroupRef(bad); err == nil {
			t.Errorf("parseGroupRef(%q) succeeded", bad)
		}
	}
}

// between returns the text after the first occurrence of start up to end.
func between(s, start, end string) string {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return ""
	}
	v, _, _ := strings.Cut(rest, end)
	return v
}
