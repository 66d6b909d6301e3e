package media

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"
)

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		name string
		res  RunResult
		want bool
	}{
		{"exit zero", RunResult{ExitCode: 0}, true},
		{"exit one", RunResult{ExitCode: 1}, false},
		{"killed", RunResult{ExitCode: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	lw := &limitedWriter{w: &bytes.Buffer{}, limit: 10}

	lw.Write([]byte("0123456789"))
	lw.Write([]byte("abcdef"))

	if got := lw.w.String(); got != "6789abcdef" {
		t.Errorf("tail = %q, want %q", got, "6789abcdef")
	}
}

func TestLimitedWriter_UnderLimit(t *testing.T) {
	lw := &limitedWriter{w: &bytes.Buffer{}, limit: 100}

	lw.Write([]byte("short"))

	if got := lw.w.String(); got != "short" {
		t.Errorf("tail = %q, want %q", got, "short")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "...world" {
		t.Errorf("truncate = %q, want %q", got, "...world")
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q, want %q", got, "short")
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000"},
		{4.171, "4.171"},
		{83.5, "83.500"},
		{3600, "3600.000"},
	}

	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClipArgs_OrderAndDefaults(t *testing.T) {
	got := clipArgs("/videos/in.mp4", CutSpec{Start: 1.5, End: 4, Output: "/tmp/out.mp4"})

	want := []string{
		"-y",
		"-loglevel", "error",
		"-progress", "pipe:2",
		"-ss", "1.500",
		"-to", "4.000",
		"-i", "/videos/in.mp4",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-crf", "23",
		"/tmp/out.mp4",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d args, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClipArgs_CustomCodecs(t *testing.T) {
	spec := CutSpec{
		Start:      0,
		End:        2.5,
		Output:     "out.webm",
		VideoCodec: "libvpx-vp9",
		AudioCodec: "libopus",
		CRF:        31,
	}

	args := strings.Join(clipArgs("in.mp4", spec), " ")

	for _, frag := range []string{"-c:v libvpx-vp9", "-c:a libopus", "-crf 31"} {
		if !strings.Contains(args, frag) {
			t.Errorf("args %q missing %q", args, frag)
		}
	}
}

func TestScanStderr_ProgressBlocks(t *testing.T) {
	input := strings.Join([]string{
		"frame=42",
		"fps=25.50",
		"bitrate= 512.3kbits/s",
		"out_time_ms=1500000",
		"speed=1.05x",
		"progress=continue",
		"[libx264 @ 0x55] frame I:3 Avg QP:20.1",
		"frame=84",
		"fps=24.00",
		"out_time_ms=3000000",
		"speed=1.00x",
		"progress=end",
	}, "\n")

	var tail bytes.Buffer
	var blocks []Progress
	var logLines []string

	e := &Executor{}
	e.scanStderr(strings.NewReader(input), &tail, func(p Progress) {
		blocks = append(blocks, p)
	}, func(line string) {
		logLines = append(logLines, line)
	})

	if len(blocks) != 2 {
		t.Fatalf("got %d progress blocks, want 2", len(blocks))
	}
	first := blocks[0]
	if first.Frame != 42 || first.FPS != 25.5 || first.Speed != "1.05x" {
		t.Errorf("first block = %+v", first)
	}
	if first.OutTime != 1.5 {
		t.Errorf("OutTime = %v, want 1.5", first.OutTime)
	}
	if blocks[1].Frame != 84 || blocks[1].OutTime != 3 {
		t.Errorf("second block = %+v", blocks[1])
	}

	if len(logLines) != 1 || !strings.Contains(logLines[0], "libx264") {
		t.Errorf("log lines = %v, want only the libx264 line", logLines)
	}
	if strings.Contains(tail.String(), "frame=") || strings.Contains(tail.String(), "speed=") {
		t.Errorf("progress keys leaked into stderr tail: %q", tail.String())
	}
	if !strings.Contains(tail.String(), "libx264") {
		t.Errorf("stderr tail missing log line: %q", tail.String())
	}
}

func TestScanStderr_NoCallbacks(t *testing.T) {
	var tail bytes.Buffer
	e := &Executor{}

	// nil callbacks must not panic
	e.scanStderr(strings.NewReader("frame=1\nprogress=end\nsome log\n"), &tail, nil, nil)

	if !strings.Contains(tail.String(), "some log") {
		t.Errorf("tail = %q, want log line", tail.String())
	}
}

func TestResolveTool_ConfiguredMissing(t *testing.T) {
	if _, err := resolveTool("/nonexistent/bin/ffmpeg-missing", "ffmpeg"); err == nil {
		t.Error("expected error for configured path that does not exist")
	}
}

func TestResolveTool_FromPath(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skipf("ffmpeg not on PATH: %v", err)
	}

	path, err := resolveTool("", "ffmpeg")
	if err != nil {
		t.Fatalf("resolveTool: %v", err)
	}
	if path == "" {
		t.Error("expected a resolved path")
	}
}
