package scrub

// StrategyKind は除去ストラテジーの種別です。
type StrategyKind int

const (
	StrategyNone StrategyKind = iota
	StrategyRaster
	StrategyPDF
	StrategyDocument
	StrategyRemux
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyRaster:
		return "raster"
	case StrategyPDF:
		return "pdf"
	case StrategyDocument:
		return "document"
	case StrategyRemux:
		return "remux"
	default:
		return "none"
	}
}

// Dispatch は宣言された MIME タイプからストラテジーを選びます。
func Dispatch(declaredType string) StrategyKind {
	switch normalizeMIME(declaredType) {
	case MimeJPEG, MimePNG, MimeWEBP:
		return StrategyRaster
	case MimePDF:
		return StrategyPDF
	case MimeDOCX:
		return StrategyDocument
	case MimeMP4, MimeAVI, MimeMKV, MimeWEBM:
		return StrategyRemux
	default:
		return StrategyNone
	}
}
