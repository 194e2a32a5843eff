package scrub

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/meta-scrub/internal/storage"
)

func TestRemuxUsesEngine(t *testing.T) {
	engine := &fakeEngine{}
	s := NewRemuxStrategy(engine, time.Second)

	out, err := s.Sanitize(context.Background(), queued("Clip.MKV", MimeMKV, []byte("frames")))
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}
	if out.Type != MimeMKV {
		t.Fatalf("type = %s, want %s", out.Type, MimeMKV)
	}
	if !bytes.Equal(out.Bytes, []byte("remuxed:frames")) {
		t.Fatalf("unexpected output %q", out.Bytes)
	}
	if engine.lastExts[0] != ".mkv" {
		t.Fatalf("engine got ext %q", engine.lastExts[0])
	}
}

func TestRemuxRejectsUnknownContainer(t *testing.T) {
	engine := &fakeEngine{}
	_, err := NewRemuxStrategy(engine, 0).Sanitize(context.Background(), queued("clip.mov", MimeMP4, []byte("x")))
	if KindOf(err) != KindUnsupportedFormat {
		t.Fatalf("kind = %v, want UNSUPPORTED_FORMAT", KindOf(err))
	}
	if calls, _ := engine.stats(); calls != 0 {
		t.Fatal("engine must not run for an unsupported container")
	}
}

func TestRemuxWithoutEngine(t *testing.T) {
	_, err := NewRemuxStrategy(nil, 0).Sanitize(context.Background(), queued("clip.mp4", MimeMP4, []byte("x")))
	if KindOf(err) != KindEngineUnavailable {
		t.Fatalf("kind = %v, want ENGINE_UNAVAILABLE", KindOf(err))
	}
}

func TestRemuxPropagatesEngineError(t *testing.T) {
	engine := &fakeEngine{err: newError(KindCorruptInput, "broken stream", nil)}
	_, err := NewRemuxStrategy(engine, 0).Sanitize(context.Background(), queued("clip.mp4", MimeMP4, []byte("x")))
	if KindOf(err) != KindCorruptInput {
		t.Fatalf("kind = %v, want CORRUPT_INPUT", KindOf(err))
	}
}

func TestRemuxSingleSlot(t *testing.T) {
	engine := &fakeEngine{delay: 20 * time.Millisecond}
	s := NewRemuxStrategy(engine, 0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Sanitize(context.Background(), queued("clip.webm", MimeWEBM, []byte("x"))); err != nil {
				t.Errorf("Sanitize returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	calls, maxSeen := engine.stats()
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	if maxSeen != 1 {
		t.Fatalf("max concurrent remux = %d, want 1", maxSeen)
	}
}

func TestFFmpegEngineMissingBinary(t *testing.T) {
	e := NewFFmpegEngine("/nonexistent/ffmpeg-binary", storage.NewScratch(t.TempDir()), testLogger())
	_, err := e.Remux(context.Background(), []byte("x"), ".mp4")
	if KindOf(err) != KindEngineUnavailable {
		t.Fatalf("kind = %v, want ENGINE_UNAVAILABLE", KindOf(err))
	}
	// 失敗はキャッシュされ、再探索しない
	_, err2 := e.Remux(context.Background(), []byte("x"), ".mp4")
	if !errors.Is(err2, e.loadErr) {
		t.Fatalf("second call did not reuse the cached load error: %v", err2)
	}
}

func TestFFmpegEngineRejectsGarbage(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	scratch := t.TempDir()
	e := NewFFmpegEngine("ffmpeg", storage.NewScratch(scratch), testLogger())

	_, err := e.Remux(context.Background(), []byte("definitely not a video"), ".mp4")
	if KindOf(err) != KindCorruptInput {
		t.Fatalf("kind = %v, want CORRUPT_INPUT", KindOf(err))
	}
	assertEmptyDir(t, scratch)
}

func TestRemuxArgsDropMetadata(t *testing.T) {
	args := remuxArgs("in.mp4", "out.mp4")
	joined := " " + strings.Join(args, " ") + " "
	for _, want := range []string{" -c copy ", " -map_metadata -1 ", " -map_chapters -1 ", " -map 0 ", " -metadata encoder= "} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %v missing %q", args, want)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output path must be last: %v", args)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch directory not cleaned up: %d entries left", len(entries))
	}
}
