package scrub

import (
	"path/filepath"
	"strconv"
	"strings"
)

const cleanedSuffix = "_cleaned"

// cleanedName は最後の拡張子の直前に _cleaned を挿入します。拡張子が無い場合は末尾に付けます。
func cleanedName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	ext := filepath.Ext(base)
	if ext == base {
		// ".env" のようなドットファイルは拡張子なしとして扱う
		ext = ""
	}
	return strings.TrimSuffix(base, ext) + cleanedSuffix + ext
}

// nameAllocator はバッチ内で出力名が重複しないように番号を振ります。大文字小文字は区別しません。
type nameAllocator struct {
	used map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]bool)}
}

func (a *nameAllocator) allocate(name string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; a.used[strings.ToLower(candidate)]; n++ {
		candidate = stem + "-" + strconv.Itoa(n) + ext
	}
	a.used[strings.ToLower(candidate)] = true
	return candidate
}
