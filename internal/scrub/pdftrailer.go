package scrub

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	infoRefPattern   = regexp.MustCompile(`/Info\s+(\d+)\s+(\d+)\s+R`)
	startxrefPattern = regexp.MustCompile(`startxref\s+(\d+)`)
	xrefEntryPattern = regexp.MustCompile(`(\d{10}) (\d{5}) ([nf])`)
)

var errNoClassicTrailer = errors.New("trailer with /Info not found")

// replaceInfoObject は従来形式の xref を持つ PDF の情報辞書オブジェクト本体を dict に置き換え、
// 後続オブジェクトの xref オフセットと startxref をずらします。
func replaceInfoObject(pdf []byte, dict string) ([]byte, error) {
	trailerAt := bytes.LastIndex(pdf, []byte("trailer"))
	if trailerAt < 0 {
		return nil, errNoClassicTrailer
	}
	ref := infoRefPattern.FindSubmatch(pdf[trailerAt:])
	if ref == nil {
		return nil, errNoClassicTrailer
	}

	sx := startxrefPattern.FindAllSubmatchIndex(pdf, -1)
	if len(sx) == 0 {
		return nil, errors.New("startxref not found")
	}
	last := sx[len(sx)-1]
	xrefAt, err := strconv.Atoi(string(pdf[last[2]:last[3]]))
	if err != nil {
		return nil, fmt.Errorf("parse startxref: %w", err)
	}
	if xrefAt < 0 || xrefAt >= trailerAt || !bytes.HasPrefix(pdf[xrefAt:], []byte("xref")) {
		return nil, errors.New("xref table not found at startxref")
	}

	header := []byte(fmt.Sprintf("%s %s obj", ref[1], ref[2]))
	objAt := findObjectHeader(pdf, header)
	if objAt < 0 {
		return nil, fmt.Errorf("info object %s not found", header)
	}
	bodyStart := objAt + len(header)

	// 文字列値に "endobj" が含まれていても切れないよう、次のオブジェクトの手前で最後の endobj を探す
	bound := nextObjectOffset(pdf[xrefAt:trailerAt], objAt, xrefAt)
	if bound <= bodyStart {
		return nil, fmt.Errorf("info object %s is not terminated", header)
	}
	end := bytes.LastIndex(pdf[bodyStart:bound], []byte("endobj"))
	if end < 0 {
		return nil, fmt.Errorf("info object %s is not terminated", header)
	}
	bodyEnd := bodyStart + end

	body := []byte("\n" + dict + "\n")
	delta := len(body) - (bodyEnd - bodyStart)

	out := make([]byte, 0, len(pdf)+delta)
	out = append(out, pdf[:bodyStart]...)
	out = append(out, body...)
	out = append(out, pdf[bodyEnd:]...)
	if delta == 0 {
		return out, nil
	}

	if xrefAt > objAt {
		xrefAt += delta
	}
	newTrailerAt := trailerAt
	if trailerAt > objAt {
		newTrailerAt += delta
	}

	// オフセットは10桁固定なので長さを変えずに上書きできる
	section := out[xrefAt:newTrailerAt]
	for _, m := range xrefEntryPattern.FindAllSubmatchIndex(section, -1) {
		if section[m[6]] != 'n' {
			continue
		}
		off, err := strconv.Atoi(string(section[m[2]:m[3]]))
		if err != nil {
			return nil, fmt.Errorf("parse xref entry: %w", err)
		}
		if off > objAt {
			copy(section[m[2]:m[3]], fmt.Sprintf("%010d", off+delta))
		}
	}

	numStart, numEnd := last[2], last[3]
	if numStart > objAt {
		numStart += delta
		numEnd += delta
	}
	tail := append([]byte{}, out[numEnd:]...)
	out = append(out[:numStart], strconv.Itoa(xrefAt)...)
	out = append(out, tail...)
	return out, nil
}

// nextObjectOffset は objAt より後ろにある最初の使用中オブジェクトの位置を返します。無ければ limit です。
func nextObjectOffset(section []byte, objAt, limit int) int {
	next := limit
	for _, m := range xrefEntryPattern.FindAllSubmatch(section, -1) {
		if m[3][0] != 'n' {
			continue
		}
		off, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		if off > objAt && off < next {
			next = off
		}
	}
	return next
}

// findObjectHeader は "N G obj" が行頭（または空白の直後）にある位置を返します。
func findObjectHeader(pdf, header []byte) int {
	from := 0
	for {
		i := bytes.Index(pdf[from:], header)
		if i < 0 {
			return -1
		}
		at := from + i
		if at == 0 || isPDFWhitespace(pdf[at-1]) {
			return at
		}
		from = at + 1
	}
}

func isPDFWhitespace(b byte) bool {
	switch b {
	case ' ', '\n', '\r', '\t', '\f', 0:
		return true
	}
	return false
}
