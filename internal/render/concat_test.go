package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempMedia(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestWriteConcatListEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	plain := writeTempMedia(t, dir, "scene_a.mp4")
	quoted := writeTempMedia(t, dir, "it's_b.mp4")

	listPath := filepath.Join(dir, "list.txt")
	if err := WriteConcatList(listPath, []string{plain, quoted}); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}

	contents, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	text := string(contents)

	if !strings.Contains(text, "file '") {
		t.Fatalf("list entries should use file directives:\n%s", text)
	}
	if !strings.Contains(text, `it'\''s_b.mp4`) {
		t.Fatalf("quote in path not escaped:\n%s", text)
	}
	if got := strings.Count(text, "file '"); got != 2 {
		t.Fatalf("expected 2 entries, got %d:\n%s", got, text)
	}
}

func TestWriteConcatListRejectsMissingSegments(t *testing.T) {
	dir := t.TempDir()
	present := writeTempMedia(t, dir, "here.mp4")
	absent := filepath.Join(dir, "gone.mp4")

	err := WriteConcatList(filepath.Join(dir, "list.txt"), []string{present, absent})
	if err == nil {
		t.Fatal("expected error for missing segment")
	}
	if !strings.Contains(err.Error(), "missing 1 segment") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "gone.mp4") {
		t.Fatalf("error should name the missing file: %v", err)
	}
}

func TestRunConcatStreamCopy(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	os.WriteFile(listPath, []byte("file 'a.mp4'\n"), 0o644)

	runner := &fakeRunner{}
	res, err := RunConcat(context.Background(), runner, "ffmpeg", listPath, filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("RunConcat: %v", err)
	}
	if res.Method != "stream_copy" {
		t.Fatalf("method = %q, want stream_copy", res.Method)
	}

	calls := runner.commands()
	if len(calls) != 1 {
		t.Fatalf("expected a single ffmpeg call, got %d", len(calls))
	}
	includes := [][]string{
		{"-f", "concat"},
		{"-safe", "0"},
		{"-c", "copy"},
	}
	for _, pair := range includes {
		if !hasArgPair(calls[0].args, pair[0], pair[1]) {
			t.Fatalf("stream copy args missing %v:\n%v", pair, calls[0].args)
		}
	}
}

func TestRunConcatFallsBackToReencode(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	os.WriteFile(listPath, []byte("file 'a.mp4'\n"), 0o644)

	runner := &fakeRunner{
		fail: func(args []string) bool { return hasArgPair(args, "-c", "copy") },
	}
	res, err := RunConcat(context.Background(), runner, "ffmpeg", listPath, filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("RunConcat: %v", err)
	}
	if res.Method != "re-encode" {
		t.Fatalf("method = %q, want re-encode", res.Method)
	}

	calls := runner.commands()
	if len(calls) != 2 {
		t.Fatalf("expected copy then re-encode, got %d calls", len(calls))
	}
	if !hasArgPair(calls[1].args, "-c:v", "libx264") || !hasArgPair(calls[1].args, "-preset", "ultrafast") {
		t.Fatalf("re-encode args wrong:\n%v", calls[1].args)
	}
}
