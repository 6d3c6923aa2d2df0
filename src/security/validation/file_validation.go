package validation

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/bankfolio/backend/src/logger"
)

// allowedClientContentTypes lists the MIME types a client may declare for a
// statement upload. Statement exports are CSV, which browsers report under
// several names.
var allowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// ValidateClientContentType checks the Content-Type header declared by the
// client for the uploaded statement file.
func ValidateClientContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedClientContentTypes[base] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for statement upload", contentType)
	}
	return nil
}

// ValidateFileContentByMagicBytes sniffs the actual file content and rejects
// anything that is not text. The read pointer is reset so the parser can read
// the full file afterwards.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detected := http.DetectContentType(buffer[:n])
	base := strings.Split(detected, ";")[0]
	if !strings.HasPrefix(base, "text/") && base != "application/octet-stream" {
		logger.L.Warn("Upload content failed magic-byte check", "detected", detected)
		return detected, fmt.Errorf("file content appears to be '%s', not a CSV statement", detected)
	}
	return detected, nil
}
