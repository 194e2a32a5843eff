package scrub

// RawFile は検証前のアップロードファイルです。
// Content は検証をすべて通過した後にだけ呼ばれます。
type RawFile interface {
	Name() string
	DeclaredType() string
	Size() int64
	Content() ([]byte, error)
}

// BytesFile はメモリ上のバイト列を RawFile として扱うアダプターです。
type BytesFile struct {
	Filename string
	MIMEType string
	Data     []byte
}

func (f BytesFile) Name() string             { return f.Filename }
func (f BytesFile) DeclaredType() string     { return f.MIMEType }
func (f BytesFile) Size() int64              { return int64(len(f.Data)) }
func (f BytesFile) Content() ([]byte, error) { return f.Data, nil }

// QueuedFile は検証済みのファイルです。生成後は変更されません。
type QueuedFile struct {
	name         string
	declaredType string
	content      []byte
}

func (f QueuedFile) Name() string         { return f.name }
func (f QueuedFile) DeclaredType() string { return f.declaredType }
func (f QueuedFile) Size() int64          { return int64(len(f.content)) }

// Bytes は内容を返します。戻り値は読み取り専用として扱ってください。
func (f QueuedFile) Bytes() []byte { return f.content }

// Batch は検証済みファイルの順序付き集合です。Policy.Accept からのみ生成されます。
type Batch struct {
	files []QueuedFile
}

// Len はバッチ内のファイル数を返します。
func (b Batch) Len() int { return len(b.files) }

// Files は入力順のファイル一覧のコピーを返します。
func (b Batch) Files() []QueuedFile {
	out := make([]QueuedFile, len(b.files))
	copy(out, b.files)
	return out
}

// Rejection は受け付けなかったファイルと理由です。
type Rejection struct {
	Name    string    `json:"name"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// CleanedBuffer はストラテジーが返す新しいバッファです。
type CleanedBuffer struct {
	Bytes []byte
	Type  string
}

// OutcomeStatus は処理結果の種別です。
type OutcomeStatus string

const (
	StatusCleaned OutcomeStatus = "cleaned"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome は1ファイル分の処理結果です。
// Status が cleaned のときは OutputName/OutputType/Bytes、それ以外は Reason が設定されます。
type Outcome struct {
	Source     string        `json:"source"`
	Status     OutcomeStatus `json:"status"`
	OutputName string        `json:"outputName,omitempty"`
	OutputType string        `json:"outputType,omitempty"`
	OutputSize int           `json:"outputSize,omitempty"`
	Reason     ErrorKind     `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`

	Bytes []byte `json:"-"`
}

func cleanedOutcome(source string, buf *CleanedBuffer) Outcome {
	return Outcome{
		Source:     source,
		Status:     StatusCleaned,
		OutputType: buf.Type,
		OutputSize: len(buf.Bytes),
		Bytes:      buf.Bytes,
	}
}

func skippedOutcome(source string, reason ErrorKind) Outcome {
	return Outcome{Source: source, Status: StatusSkipped, Reason: reason, Message: reason.Message()}
}

func failedOutcome(source string, err error) Outcome {
	return Outcome{Source: source, Status: StatusFailed, Reason: KindOf(err), Message: messageOf(err)}
}

// Report はバッチ全体の結果です。Outcomes は入力順に並びます。
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	Cleaned  int       `json:"cleaned"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func newReport(outcomes []Outcome) *Report {
	r := &Report{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case StatusCleaned:
			r.Cleaned++
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		}
	}
	return r
}

// Reasons は skipped/failed の理由ごとの件数を返します。
func (r *Report) Reasons() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, o := range r.Outcomes {
		if o.Status != StatusCleaned {
			counts[o.Reason]++
		}
	}
	return counts
}

// CleanedOutcomes は cleaned の結果だけを入力順に返します。
func (r *Report) CleanedOutcomes() []Outcome {
	out := make([]Outcome, 0, r.Cleaned)
	for _, o := range r.Outcomes {
		if o.Status == StatusCleaned {
			out = append(out, o)
		}
	}
	return out
}

// ArtifactKind はダウンロード成果物の種別です。
type ArtifactKind string

const (
	ArtifactFile ArtifactKind = "file"
	ArtifactZIP  ArtifactKind = "zip"
)

// Artifact は利用者に渡す成果物です。
type Artifact struct {
	Bytes    []byte
	Filename string
	MimeType string
	Kind     ArtifactKind
}
