package scrub

import (
	"errors"
	"fmt"
)

// ErrorKind はファイル単位の失敗理由を表します。
type ErrorKind string

const (
	KindTooManyFiles      ErrorKind = "TOO_MANY_FILES"
	KindUnsupportedFormat ErrorKind = "UNSUPPORTED_FORMAT"
	KindFileTooLarge      ErrorKind = "FILE_TOO_LARGE"
	KindCorruptInput      ErrorKind = "CORRUPT_INPUT"
	KindInvalidContainer  ErrorKind = "INVALID_CONTAINER"
	KindEncodeUnsupported ErrorKind = "ENCODE_UNSUPPORTED"
	KindEngineUnavailable ErrorKind = "ENGINE_UNAVAILABLE"
)

var kindMessages = map[ErrorKind]string{
	KindTooManyFiles:      "一度に処理できるファイル数の上限を超えています。",
	KindUnsupportedFormat: "対応していないファイル形式です。",
	KindFileTooLarge:      "ファイルサイズが上限を超えています。",
	KindCorruptInput:      "ファイルが破損しているか、形式が一致しません。",
	KindInvalidContainer:  "文書ファイルの構造が不正です。",
	KindEncodeUnsupported: "この形式への再エンコードに対応していません。",
	KindEngineUnavailable: "動画処理エンジンを利用できません。",
}

// Message はエラー種別に対応する利用者向けメッセージを返します。
func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return "処理中にエラーが発生しました。"
}

// Error は利用者向けメッセージと原因を保持するエラーです。
type Error struct {
	Code    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorKind, message string, err error) *Error {
	if message == "" {
		message = code.Message()
	}
	return &Error{Code: code, Message: message, Err: err}
}

// KindOf はエラーを ErrorKind に変換します。種別を持たないエラーは CORRUPT_INPUT 扱いです。
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return KindCorruptInput
}

func messageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return KindOf(err).Message()
}
