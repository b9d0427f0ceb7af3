package storage

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateFileName builds a stored name from a random identifier and the client file name
func GenerateFileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || strings.HasPrefix(base, ".") {
		base = ""
	}
	return uuid.New().String() + base
}
