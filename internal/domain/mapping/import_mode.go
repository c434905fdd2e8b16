package mapping

import (
	"fmt"
	"strings"
)

// ImportMode decides what happens to the existing list when rows are imported.
type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportAppend  ImportMode = "append"
)

func ParseImportMode(raw string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ImportReplace:
		return ImportReplace, nil
	case ImportAppend:
		return ImportAppend, nil
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported import mode %q (expected: replace or append)", raw)}
	}
}
