package ingest

import (
	"path/filepath"
	"strings"

	"github.com/theduckverse/refundhunter-backend/constants"
)

// AllowedExt checks if a file extension is in the allowed set (csv/tsv/txt/xlsx).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// extSet builds a lookup from user-provided extensions, or the defaults when none are given.
func extSet(includeExts []string) map[string]struct{} {
	if len(includeExts) == 0 {
		return constants.AllowedExtensions
	}
	exts := map[string]struct{}{}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
