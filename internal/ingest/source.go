package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/common"
)

// Source is one loaded input file, parsed but not yet normalized.
type Source struct {
	Path    string
	Format  string
	HashHex string
	Size    int64
	Table   Table
}

// ReadFile loads a supported file and parses it according to its extension.
func ReadFile(path string) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	format := constants.MapExtToFormat(filepath.Ext(abs))
	if format == "" {
		return nil, common.NewAppError(common.CodeIngest,
			fmt.Sprintf("unsupported or missing extension: %q", filepath.Ext(abs)), common.ErrInvalidInput)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, common.WrapError(err, "read")
	}
	return FromBytes(abs, format, data)
}

// FromBytes parses already-loaded content. Text formats ignore the extension and
// rely on delimiter detection.
func FromBytes(name, format string, data []byte) (*Source, error) {
	src := &Source{
		Path:    name,
		Format:  format,
		HashHex: HashContent(data),
		Size:    int64(len(data)),
	}
	if format == constants.XLSX {
		t, err := ReadXLSX(data)
		if err != nil {
			return nil, common.NewAppError(common.CodeIngest, "parse workbook "+filepath.Base(name), err)
		}
		src.Table = t
		return src, nil
	}
	src.Table = ParseDelimited(string(data))
	return src, nil
}

// HashContent returns the content hash used to dedupe audit runs.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
