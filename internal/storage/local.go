// Package storage はローカルの一時作業領域を提供します。
//
// 動画エンジンのようにシーク可能なファイルを必要とする処理だけが使用します。
// 作業領域は処理ごとに作成し、処理が終わったら必ず削除します。
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch は一時作業領域のルートです。
type Scratch struct {
	baseDir string
}

// NewScratch はルートディレクトリを指定して Scratch を作成します。空文字の場合は os.TempDir() を使います。
func NewScratch(baseDir string) *Scratch {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Scratch{baseDir: baseDir}
}

// BaseDir はルートディレクトリを返します。
func (s *Scratch) BaseDir() string {
	return s.baseDir
}

// Workspace は1回の処理専用のディレクトリです。
type Workspace struct {
	ID  string
	Dir string
}

// Create は所有者だけが読み書きできる作業ディレクトリを作成します。
func (s *Scratch) Create() (*Workspace, error) {
	if err := os.MkdirAll(s.baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("作業領域のルート作成に失敗しました: %w", err)
	}
	id := uuid.NewString()
	dir := filepath.Join(s.baseDir, "scrub-"+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("作業ディレクトリの作成に失敗しました: %w", err)
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

// Path は作業ディレクトリ内のファイルパスを返します。
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, filepath.Base(name))
}

// WriteFile は作業ディレクトリにファイルを書き込みます。
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("作業ファイルの書き込みに失敗しました: %w", err)
	}
	return path, nil
}

// Remove は作業ディレクトリを中身ごと削除します。
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
