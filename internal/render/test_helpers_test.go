package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/plan"
)

const testProbeJSON = `{
  "format": {"format_name": "mov,mp4,m4a", "duration": "4.000000"},
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920, "r_frame_rate": "30/1"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"}
  ]
}`

type fakeCall struct {
	command string
	args    []string
}

// fakeRunner stands in for ffmpeg/ffprobe. ffprobe calls answer with
// canned JSON; ffmpeg calls create the output file (the last argument)
// unless the fail predicate rejects the invocation.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall
	fail  func(args []string) bool
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string, opts execx.RunOptions) (execx.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{command: command, args: append([]string{}, args...)})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return execx.RunResult{ExitCode: -1}, err
	}

	switch filepath.Base(command) {
	case "ffprobe":
		return execx.RunResult{Stdout: []byte(testProbeJSON)}, nil
	default:
		if f.fail != nil && f.fail(args) {
			return execx.RunResult{Stderr: []byte("fake encoder failure"), ExitCode: 1}, nil
		}
		if len(args) > 0 {
			if out := args[len(args)-1]; strings.HasSuffix(out, ".mp4") {
				if err := os.WriteFile(out, []byte("fake media"), 0o644); err != nil {
					return execx.RunResult{Stderr: []byte(err.Error()), ExitCode: 1}, nil
				}
			}
		}
		return execx.RunResult{}, nil
	}
}

func (f *fakeRunner) commands() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall{}, f.calls...)
}

func argsContain(args []string, want string) bool {
	for _, a := range args {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}

func hasArgPair(args []string, key, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == key && args[i+1] == value {
			return true
		}
	}
	return false
}

func testSelection(key string, parts ...plan.Part) plan.Selection {
	sel := plan.Selection{FolderKey: key, Parts: parts}
	for _, p := range parts {
		sel.TargetDuration += p.Duration
	}
	return sel
}

func testSettings() config.Settings {
	s := config.Default()
	s.Paths.TempDir = ""
	return s
}
