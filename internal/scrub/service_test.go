package scrub

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/yourusername/meta-scrub/internal/config"
)

func testService(t *testing.T) *Service {
	t.Helper()
	return NewService(&config.Config{
		MaxFileCount: 3,
		MaxFileSize:  DefaultMaxFileSize,
		MaxPixels:    DefaultMaxPixels,
		JPEGQuality:  90,
		Workers:      2,
		EnableVideo:  false,
		ScratchDir:   t.TempDir(),
	}, testLogger())
}

func TestServiceScrubWithRejections(t *testing.T) {
	svc := testService(t)
	result, err := svc.Scrub(context.Background(), []RawFile{
		BytesFile{Filename: "a.png", MIMEType: MimePNG, Data: pngBytes(t, 3, 3)},
		BytesFile{Filename: "b.gif", MIMEType: "image/gif", Data: []byte("GIF89a")},
		BytesFile{Filename: "c.mp4", MIMEType: MimeMP4, Data: []byte("x")},
		BytesFile{Filename: "d.pdf", MIMEType: MimePDF, Data: buildPDF(testInfoDict)},
	}, nil)
	if err != nil {
		t.Fatalf("Scrub returned error: %v", err)
	}

	if len(result.Rejections) != 2 {
		t.Fatalf("rejections = %+v", result.Rejections)
	}
	if result.Rejections[0].Name != "b.gif" || result.Rejections[1].Name != "c.mp4" {
		t.Fatalf("unexpected rejections: %+v", result.Rejections)
	}
	if result.Report.Cleaned != 2 {
		t.Fatalf("report = %+v", result.Report)
	}
	if result.Artifact == nil || result.Artifact.Kind != ArtifactZIP {
		t.Fatalf("artifact = %+v", result.Artifact)
	}
}

func TestServiceScrubNothingAccepted(t *testing.T) {
	result, err := testService(t).Scrub(context.Background(), []RawFile{
		BytesFile{Filename: "x.exe", MIMEType: MimePDF, Data: []byte("MZ")},
	}, nil)
	if err != nil {
		t.Fatalf("Scrub returned error: %v", err)
	}
	if result.Report != nil || result.Artifact != nil {
		t.Fatalf("expected no report and no artifact, got %+v", result)
	}
	if len(result.Rejections) != 1 || result.Rejections[0].Kind != KindUnsupportedFormat {
		t.Fatalf("rejections = %+v", result.Rejections)
	}
}

func TestServiceLogsProgress(t *testing.T) {
	var logs bytes.Buffer
	svc := NewService(&config.Config{
		MaxFileCount: 2,
		MaxFileSize:  DefaultMaxFileSize,
		JPEGQuality:  90,
		Workers:      1,
		ScratchDir:   t.TempDir(),
	}, log.New(&logs, "", 0))

	var stages []string
	_, err := svc.Scrub(context.Background(), []RawFile{
		BytesFile{Filename: "a.png", MIMEType: MimePNG, Data: pngBytes(t, 2, 2)},
	}, func(stage string, percent int) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Scrub returned error: %v", err)
	}

	if len(stages) != 3 || stages[2] != "completed" {
		t.Fatalf("caller received stages %v", stages)
	}
	for _, want := range []string{"stage=queued percent=0", "stage=process percent=100", "stage=completed percent=100"} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("log missing %q:\n%s", want, logs.String())
		}
	}
}
