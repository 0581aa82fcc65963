package render

import (
	"math"
	"testing"
)

func TestProgressWatcherClassicStatusLine(t *testing.T) {
	var (
		gotFrac   float64
		gotStatus Status
	)
	w := newProgressWatcher(10, func(frac float64, st Status) {
		gotFrac = frac
		gotStatus = st
	})

	line := "frame=  214 fps= 30 q=28.0 size=    1024KiB time=00:00:05.00 bitrate=1677.7kbits/s speed=1.25x\r"
	if _, err := w.Write([]byte(line)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if gotStatus.Frame != 214 {
		t.Fatalf("frame = %d, want 214", gotStatus.Frame)
	}
	if gotStatus.FPS != 30 {
		t.Fatalf("fps = %v, want 30", gotStatus.FPS)
	}
	if gotStatus.Speed != "1.25x" {
		t.Fatalf("speed = %q, want 1.25x", gotStatus.Speed)
	}
	if math.Abs(gotFrac-0.5) > 1e-9 {
		t.Fatalf("fraction = %v, want 0.5", gotFrac)
	}
}

func TestProgressWatcherProgressPipe(t *testing.T) {
	var gotStatus Status
	w := newProgressWatcher(10, func(_ float64, st Status) {
		gotStatus = st
	})

	// out_time_ms carries microseconds despite the key name.
	feed := "frame=60\nout_time_ms=2500000\nspeed=2x\nprogress=continue\n"
	if _, err := w.Write([]byte(feed)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if math.Abs(gotStatus.Time-2.5) > 1e-9 {
		t.Fatalf("time = %v, want 2.5", gotStatus.Time)
	}
	if gotStatus.Frame != 60 {
		t.Fatalf("frame = %d, want 60", gotStatus.Frame)
	}
}

func TestProgressWatcherSplitWrites(t *testing.T) {
	var gotStatus Status
	w := newProgressWatcher(10, func(_ float64, st Status) {
		gotStatus = st
	})

	w.Write([]byte("out_time=00:00:0"))
	w.Write([]byte("3.50\nspeed=1x\n"))

	if math.Abs(gotStatus.Time-3.5) > 1e-9 {
		t.Fatalf("time = %v, want 3.5 after reassembled line", gotStatus.Time)
	}
}

func TestProgressWatcherFractionMonotonic(t *testing.T) {
	var fracs []float64
	w := newProgressWatcher(10, func(frac float64, _ Status) {
		fracs = append(fracs, frac)
	})

	w.Write([]byte("time=00:00:08.00\n"))
	w.Write([]byte("time=00:00:04.00\n"))
	w.Write([]byte("time=00:00:20.00\n"))

	want := []float64{0.8, 0.8, 1}
	if len(fracs) != len(want) {
		t.Fatalf("got %d emissions, want %d", len(fracs), len(want))
	}
	for i := range want {
		if math.Abs(fracs[i]-want[i]) > 1e-9 {
			t.Fatalf("emission %d = %v, want %v", i, fracs[i], want[i])
		}
	}
}

func TestProgressWatcherIgnoresUnparseable(t *testing.T) {
	calls := 0
	w := newProgressWatcher(10, func(float64, Status) { calls++ })

	w.Write([]byte("Press [q] to stop, [?] for help\n"))
	w.Write([]byte("out_time=N/A\n"))
	w.Write([]byte("\n\r\n"))

	if calls != 0 {
		t.Fatalf("noise lines should not emit, got %d emissions", calls)
	}
}

func TestParseFFmpegTime(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:05.00", 5, true},
		{"01:02:03.500", 3723.5, true},
		{"12.25", 12.25, true},
		{"0", 0, true},
		{"-01:00:01.00", 0, false},
		{"-3", 0, false},
		{"bogus", 0, false},
		{"1:2", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseFFmpegTime(tc.in)
		if ok != tc.ok {
			t.Fatalf("parseFFmpegTime(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
		if ok && math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("parseFFmpegTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
