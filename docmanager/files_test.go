package docmanager

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUniqueFilename(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		in   string
		base string
	}{
		{name: "plain", in: "lecture1.pdf", base: "lecture1"},
		{name: "spaces and symbols", in: "Week 3: CNNs (draft).PDF", base: "Week_3__CNNs__draft"},
		{name: "path stripped", in: `C:\Users\me\notes.pdf`, base: "notes"},
		{name: "unicode kept", in: "深度学习.pdf", base: "深度学习"},
		{name: "nothing left", in: "???.pdf", base: "document"},
		{name: "dot runs collapsed", in: "week1..final...v2.pdf", base: "week1.final.v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateUniqueFilename(tt.in, now)
			pattern := regexp.MustCompile(`^1700000000_[0-9a-f]{8}_` + regexp.QuoteMeta(tt.base) + `\.pdf$`)
			assert.Regexp(t, pattern, got)
		})
	}

	assert.NotEqual(t, GenerateUniqueFilename("a.pdf", now), GenerateUniqueFilename("a.pdf", now))
}

func TestCalculateFileHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", CalculateFileHash(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", CalculateFileHash([]byte("hello")))
}

func TestValidatePDF(t *testing.T) {
	valid := []byte("%PDF-1.4\n...")

	tests := []struct {
		name    string
		file    string
		content []byte
		max     int64
		wantMsg string
	}{
		{name: "valid", file: "a.pdf", content: valid},
		{name: "upper extension", file: "A.PDF", content: valid},
		{name: "wrong extension", file: "a.docx", content: valid, wantMsg: "only PDF files are supported"},
		{name: "empty", file: "a.pdf", wantMsg: "file is empty"},
		{name: "too large", file: "a.pdf", content: valid, max: 4, wantMsg: "exceeds the 4 B limit"},
		{name: "bad header", file: "a.pdf", content: []byte("PK\x03\x04"), wantMsg: "not a valid PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePDF(tt.file, tt.content, tt.max)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsCode(err, ErrCodeInvalidFile))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536 * 1024, "1.50 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
		{5000 * 1024 * 1024 * 1024, "5000.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFileSize(tt.in))
		})
	}
}

func TestSanitizeBaseLength(t *testing.T) {
	got := sanitizeBase(strings.Repeat("a", 300) + ".pdf")
	assert.Len(t, got, maxBaseNameRunes)
}
