package scrub

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func queued(name, mimeType string, data []byte) QueuedFile {
	return QueuedFile{name: name, declaredType: mimeType, content: data}
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// pngWithText は IHDR の直後に tEXt チャンクを差し込んだ PNG を返します。
func pngWithText(t *testing.T, w, h int, key, value string) []byte {
	t.Helper()
	src := pngBytes(t, w, h)
	const ihdrEnd = 8 + 4 + 4 + 13 + 4

	payload := append([]byte(key), 0)
	payload = append(payload, value...)
	chunk := make([]byte, 0, len(payload)+12)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(payload)))
	chunk = append(chunk, "tEXt"...)
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := append([]byte{}, src[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, src[ihdrEnd:]...)
}

// jpegWithExif は SOI の直後に Orientation と任意の文字列を含む APP1(Exif) を差し込んだ JPEG を返します。
func jpegWithExif(t *testing.T, w, h int, orientation uint16, marker string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	src := buf.Bytes()

	tiff := []byte("MM\x00\x2a\x00\x00\x00\x08")
	tiff = binary.BigEndian.AppendUint16(tiff, 1)
	tiff = binary.BigEndian.AppendUint16(tiff, 0x0112)
	tiff = binary.BigEndian.AppendUint16(tiff, 3)
	tiff = binary.BigEndian.AppendUint32(tiff, 1)
	tiff = binary.BigEndian.AppendUint16(tiff, orientation)
	tiff = append(tiff, 0, 0)
	tiff = binary.BigEndian.AppendUint32(tiff, 0)
	tiff = append(tiff, marker...)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := []byte{0xff, 0xe1}
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte{}, src[:2]...)
	out = append(out, segment...)
	return append(out, src[2:]...)
}

// buildPDF は正しい xref を持つ1ページの PDF を組み立てます。info が空なら情報辞書を付けません。
func buildPDF(info string) []byte {
	content := "0 0 m 100 100 l S"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Contents 4 0 R /Resources << >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	if info != "" {
		objs = append(objs, info)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	trailer := fmt.Sprintf("<< /Size %d /Root 1 0 R", len(objs)+1)
	if info != "" {
		trailer += fmt.Sprintf(" /Info %d 0 R", len(objs))
	}
	trailer += " >>"
	fmt.Fprintf(&b, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return b.Bytes()
}

const testInfoDict = "<< /Title (Secret Title) /Author (Jane Doe) /Creator (Word 2019) /Producer (Acrobat Distiller) /CreationDate (D:20230102030405Z) >>"

type zipPart struct {
	name   string
	body   string
	method uint16
}

func defaultDocxParts() []zipPart {
	return []zipPart{
		{name: "[Content_Types].xml", body: `<?xml version="1.0"?><Types/>`, method: zip.Deflate},
		{name: "_rels/.rels", body: `<?xml version="1.0"?><Relationships/>`, method: zip.Deflate},
		{name: "docProps/core.xml", body: `<cp:coreProperties><dc:creator>Jane Doe</dc:creator></cp:coreProperties>`, method: zip.Deflate},
		{name: "docProps/app.xml", body: `<Properties><Company>ACME</Company><TotalTime>42</TotalTime></Properties>`, method: zip.Deflate},
		{name: "docProps/custom.xml", body: `<Properties><property name="Client">Initech</property></Properties>`, method: zip.Deflate},
		{name: "word/document.xml", body: `<w:document><w:body><w:p>Hello</w:p></w:body></w:document>`, method: zip.Deflate},
		{name: "word/media/image1.bin", body: "\x00\x01\x02binary", method: zip.Store},
	}
}

func buildZip(t *testing.T, parts []zipPart) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: p.method})
		if err != nil {
			t.Fatalf("failed to create zip entry: %v", err)
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			t.Fatalf("failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func zipEntryNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open zip: %v", err)
	}
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

// fakeEngine は入力の先頭に印を付けて返すだけのエンジンです。同時実行数を記録します。
type fakeEngine struct {
	mu       sync.Mutex
	active   int
	maxSeen  int
	calls    int
	delay    time.Duration
	err      error
	lastExts []string
}

func (e *fakeEngine) Remux(ctx context.Context, input []byte, ext string) ([]byte, error) {
	e.mu.Lock()
	e.active++
	e.calls++
	if e.active > e.maxSeen {
		e.maxSeen = e.active
	}
	e.lastExts = append(e.lastExts, ext)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, e.err
	}
	return append([]byte("remuxed:"), input...), nil
}

func (e *fakeEngine) stats() (calls, maxSeen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls, e.maxSeen
}

func newTestRunner(engine Engine, workers int) *Runner {
	var remux *RemuxStrategy
	if engine != nil {
		remux = NewRemuxStrategy(engine, 0)
	}
	return NewRunner(RunnerOptions{
		Raster:   NewRasterStrategy(90, 0),
		PDF:      NewPDFStrategy(),
		Document: NewDocumentStrategy(),
		Remux:    remux,
		Workers:  workers,
		Logger:   testLogger(),
	})
}

func mustAccept(t *testing.T, p Policy, files ...RawFile) Batch {
	t.Helper()
	batch, rejected := p.Accept(files)
	if len(rejected) > 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
	return batch
}
