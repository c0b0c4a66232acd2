package constants

import "strings"

// FileFormat is the detected kind of an uploaded document.
type FileFormat string

const (
	TXT     FileFormat = "TXT"
	IMAGE   FileFormat = "IMAGE"
	PDF     FileFormat = "PDF"
	UNKNOWN FileFormat = "UNKNOWN"
)

// MaxUploadBytes is the hard size ceiling for a single document.
// Oversized uploads are rejected before the pipeline runs.
const MaxUploadBytes = 10 << 20 // 10 MB

// AllowedExtensions holds the accepted file extensions for receipt documents.
var AllowedExtensions = map[string]struct{}{
	"txt":  {},
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tiff": {},
	"tif":  {},
	"webp": {},
	"heic": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to its FileFormat.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "txt":
		return TXT
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "bmp", "tiff", "tif", "webp", "heic":
		return IMAGE
	default:
		return UNKNOWN
	}
}

// IsAllowedExtension reports whether ext belongs to the accepted set.
func IsAllowedExtension(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether ext denotes an HEIC/HEIF container.
func IsHEICExt(ext string) bool {
	return NormalizeExt(ext) == "heic"
}
