package constants

import "strings"

// Source formats accepted by the ingest layer.
const (
	CSV  = "CSV"
	TSV  = "TSV"
	TEXT = "TEXT"
	XLSX = "XLSX"
)

// FileTypes holds the allowed values for the format column in audit_runs.
var FileTypes = []string{CSV, TSV, TEXT, XLSX}

// AllowedExtensions holds the default allowed file extensions for directory ingestion.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"tsv":  {},
	"txt":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a source format, or "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "csv":
		return CSV
	case "tsv":
		return TSV
	case "txt":
		return TEXT
	case "xlsx":
		return XLSX
	default:
		return ""
	}
}
