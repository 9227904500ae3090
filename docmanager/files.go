package docmanager

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/Abraxas-365/coursekb/storage"
	"github.com/google/uuid"
)

// DefaultMaxFileSize is the upload limit, 50 MB
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

const maxBaseNameRunes = 100

var pdfMagic = []byte("%PDF-")

// GenerateUniqueFilename builds "<unix>_<8 hex>_<sanitized base>.pdf"
func GenerateUniqueFilename(name string, now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s_%s.pdf", now.Unix(), id, sanitizeBase(name))
}

func sanitizeBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var (
		sb   strings.Builder
		prev rune
	)
	n := 0
	for _, r := range base {
		if n == maxBaseNameRunes {
			break
		}
		switch {
		case r == '.' && prev == '.':
			// runs of dots collapse so stored keys never hold ".."
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
		prev = r
		n++
	}

	out := strings.Trim(sb.String(), "._")
	if out == "" {
		return "document"
	}
	return out
}

// CalculateFileHash returns the hex MD5 of content
func CalculateFileHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// ValidatePDF checks the extension, size bounds and the %PDF- header
func ValidatePDF(name string, content []byte, maxSize int64) error {
	const op = "ValidatePDF"
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	switch {
	case !strings.EqualFold(filepath.Ext(name), ".pdf"):
		return newError(op, ErrCodeInvalidFile, name, "only PDF files are supported", nil)
	case len(content) == 0:
		return newError(op, ErrCodeInvalidFile, name, "file is empty", nil)
	case int64(len(content)) > maxSize:
		return newError(op, ErrCodeInvalidFile, name,
			fmt.Sprintf("file size %s exceeds the %s limit", FormatFileSize(int64(len(content))), FormatFileSize(maxSize)), nil)
	case !bytes.HasPrefix(content, pdfMagic):
		return newError(op, ErrCodeInvalidFile, name, "file is not a valid PDF", nil)
	}
	return nil
}

// SafeRemove deletes key; a key that is already gone counts as removed
func SafeRemove(ctx context.Context, store storage.DataStore, key string) error {
	if err := store.Delete(ctx, key); err != nil && !storage.IsNotFound(err) {
		return err
	}
	return nil
}

// FormatFileSize renders n bytes as B, KB, MB or GB with two decimals above bytes
func FormatFileSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	size := float64(n)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		size /= unit
		if size < unit || suffix == "GB" {
			return fmt.Sprintf("%.2f %s", size, suffix)
		}
	}
	return ""
}
