package scrub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Scrubber は HTTP ハンドラーが利用するサービスです。
type Scrubber interface {
	Policy() Policy
	Scrub(ctx context.Context, files []RawFile, progress ProgressReporter) (*Result, error)
}

type policyResponse struct {
	AcceptedTypes map[string][]string `json:"acceptedTypes"`
	MaxFileCount  int                 `json:"maxFileCount"`
	MaxFileSize   int64               `json:"maxFileSize"`
	VideoEnabled  bool                `json:"videoEnabled"`
}

// PolicyHandler は GET /api/policy のハンドラーを返します。
func PolicyHandler(svc Scrubber) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := svc.Policy()
		types := make(map[string][]string)
		for _, t := range p.AcceptedTypes() {
			exts, _ := p.Extensions(t)
			types[t] = exts
		}
		c.JSON(http.StatusOK, policyResponse{
			AcceptedTypes: types,
			MaxFileCount:  p.MaxFileCount,
			MaxFileSize:   p.MaxFileSize,
			VideoEnabled:  p.EnableVideo,
		})
	}
}

// ScrubHandler は POST /api/scrub のハンドラーを返します。
func ScrubHandler(svc Scrubber) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := svc.Policy()
		limit := policy.MaxRequestBytes()
		if c.Request.ContentLength > limit {
			respondRequestTooLarge(c, limit)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondRequestTooLarge(c, limit)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		headers := form.File["files[]"]
		if len(headers) == 0 {
			headers = form.File["files"]
		}
		if len(headers) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "アップロードされたファイルが見つかりません。",
			})
			return
		}

		files := make([]RawFile, len(headers))
		for i, h := range headers {
			files[i] = multipartFile{header: h, limit: policy.MaxFileSize}
		}

		result, err := svc.Scrub(c.Request.Context(), files, nil)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if c.Request.Context().Err() != nil {
			// 利用者がバッチを取り消したので結果は破棄する
			log.Printf("scrub: request canceled, discarding result")
			return
		}

		if result.Report == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":     "NO_ACCEPTED_FILES",
				"message":  "処理できるファイルがありませんでした。",
				"rejected": nonNilRejections(result.Rejections),
			})
			return
		}

		if result.Artifact == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":     "NOTHING_CLEANED",
				"message":  "メタデータを除去できたファイルがありませんでした。",
				"report":   result.Report,
				"reasons":  result.Report.Reasons(),
				"rejected": nonNilRejections(result.Rejections),
			})
			return
		}

		streamArtifact(c, result)
	}
}

func streamArtifact(c *gin.Context, result *Result) {
	a := result.Artifact
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s",
		asciiFilename(a.Filename), url.PathEscape(a.Filename)))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Scrub-Kind", string(a.Kind))
	c.Header("X-Scrub-Cleaned", strconv.Itoa(result.Report.Cleaned))
	c.Header("X-Scrub-Skipped", strconv.Itoa(result.Report.Skipped))
	c.Header("X-Scrub-Failed", strconv.Itoa(result.Report.Failed))
	c.Header("X-Scrub-Rejected", strconv.Itoa(len(result.Rejections)))
	c.Data(http.StatusOK, a.MimeType, a.Bytes)
}

func respondRequestTooLarge(c *gin.Context, limit int64) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"code":    KindFileTooLarge,
		"message": fmt.Sprintf("リクエスト全体のサイズが上限 (%d バイト) を超えています。", limit),
	})
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case KindFileTooLarge:
			status = http.StatusRequestEntityTooLarge
		case KindEngineUnavailable:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

// multipartFile はアップロードされたパートを RawFile として扱います。
type multipartFile struct {
	header *multipart.FileHeader
	limit  int64
}

func (f multipartFile) Name() string         { return f.header.Filename }
func (f multipartFile) DeclaredType() string { return f.header.Header.Get("Content-Type") }
func (f multipartFile) Size() int64          { return f.header.Size }

// Content は上限+1バイトまでしか読まないので、上限超過は呼び出し側で検出できます。
func (f multipartFile) Content() ([]byte, error) {
	src, err := f.header.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルを開けませんでした: %w", err)
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, f.limit+1))
}

func asciiFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}

func nonNilRejections(r []Rejection) []Rejection {
	if r == nil {
		return []Rejection{}
	}
	return r
}
