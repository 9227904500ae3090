// Package batch tracks the per-file status of a multi-file upload.
package batch

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

type OverallStatus string

const (
	OverallIdle       OverallStatus = "idle"
	OverallProcessing OverallStatus = "processing"
	OverallCompleted  OverallStatus = "completed"
)

// FileInfo identifies an uploaded file by name and size
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// FileKey is "<name>_<size>"
func FileKey(f FileInfo) string {
	return fmt.Sprintf("%s_%d", f.Name, f.Size)
}

// GenerateID derives a stable id from the set of files, independent of order
func GenerateID(files []FileInfo) string {
	if len(files) == 0 {
		return ""
	}
	sigs := make([]string, len(files))
	for i, f := range files {
		sigs[i] = FileKey(f)
	}
	sort.Strings(sigs)
	sum := md5.Sum([]byte(strings.Join(sigs, "|")))
	return "batch_" + hex.EncodeToString(sum[:])[:12]
}

type FileState struct {
	Filename   string     `json:"filename"`
	Size       int64      `json:"size"`
	Status     Status     `json:"status"`
	Error      string     `json:"error"`
	Progress   float64    `json:"progress"`
	UploadTime *time.Time `json:"upload_time"`
}

type State struct {
	BatchID        string                `json:"batch_id"`
	Files          map[string]*FileState `json:"files"`
	BatchTimestamp string                `json:"batch_timestamp"`
	OverallStatus  OverallStatus         `json:"overall_status"`
	TotalFiles     int                   `json:"total_files"`
	CompletedFiles int                   `json:"completed_files"`
	SuccessCount   int                   `json:"success_count"`
	FailedCount    int                   `json:"failed_count"`
}

// NewState starts every file as pending. Files sharing a key are tracked once.
func NewState(files []FileInfo, batchID string) *State {
	s := &State{
		BatchID:        batchID,
		Files:          make(map[string]*FileState, len(files)),
		BatchTimestamp: time.Now().Format(time.RFC3339),
		OverallStatus:  OverallIdle,
	}
	for _, f := range files {
		s.Files[FileKey(f)] = &FileState{
			Filename: f.Name,
			Size:     f.Size,
			Status:   StatusPending,
		}
	}
	s.TotalFiles = len(s.Files)
	return s
}

// UpdateFileStatus sets a file's status and recomputes the totals. Unknown keys are ignored.
// An empty errMsg keeps the previous error; progress is only set when given.
func (s *State) UpdateFileStatus(key string, status Status, errMsg string, progress ...float64) {
	f, ok := s.Files[key]
	if !ok {
		return
	}

	f.Status = status
	if errMsg != "" {
		f.Error = errMsg
	}
	if len(progress) > 0 {
		f.Progress = progress[0]
	}
	if status == StatusSuccess {
		now := time.Now()
		f.UploadTime = &now
	}

	s.recount()
}

func (s *State) recount() {
	s.SuccessCount, s.FailedCount = 0, 0
	for _, f := range s.Files {
		switch f.Status {
		case StatusSuccess:
			s.SuccessCount++
		case StatusFailed:
			s.FailedCount++
		}
	}
	s.CompletedFiles = s.SuccessCount + s.FailedCount

	switch {
	case s.CompletedFiles == s.TotalFiles:
		s.OverallStatus = OverallCompleted
	case s.CompletedFiles > 0:
		s.OverallStatus = OverallProcessing
	}
}

func (s *State) keysWith(status Status) []string {
	var keys []string
	for k, f := range s.Files {
		if f.Status == status {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// PendingFiles returns the sorted keys of pending files
func (s *State) PendingFiles() []string {
	return s.keysWith(StatusPending)
}

// FailedFiles returns the sorted keys of failed files
func (s *State) FailedFiles() []string {
	return s.keysWith(StatusFailed)
}

// Progress is the completed fraction, 1 for an empty batch
func (s *State) Progress() float64 {
	if s.TotalFiles == 0 {
		return 1.0
	}
	return float64(s.CompletedFiles) / float64(s.TotalFiles)
}

// Summary renders the counts, e.g. "Total 3 files - ✅ Success: 2 | ❌ Failed: 1"
func (s *State) Summary() string {
	pending := s.TotalFiles - s.SuccessCount - s.FailedCount

	var parts []string
	if s.SuccessCount > 0 {
		parts = append(parts, fmt.Sprintf("✅ Success: %d", s.SuccessCount))
	}
	if s.FailedCount > 0 {
		parts = append(parts, fmt.Sprintf("❌ Failed: %d", s.FailedCount))
	}
	if pending > 0 {
		parts = append(parts, fmt.Sprintf("⏸️ Pending: %d", pending))
	}

	return fmt.Sprintf("Total %d files - ", s.TotalFiles) + strings.Join(parts, " | ")
}

// ShouldProcess is true for pending or failed files
func (s *State) ShouldProcess(key string) bool {
	f, ok := s.Files[key]
	if !ok {
		return false
	}
	return f.Status == StatusPending || f.Status == StatusFailed
}

// Clone deep-copies the state
func (s *State) Clone() *State {
	c := *s
	c.Files = make(map[string]*FileState, len(s.Files))
	for k, f := range s.Files {
		fc := *f
		if f.UploadTime != nil {
			t := *f.UploadTime
			fc.UploadTime = &t
		}
		c.Files[k] = &fc
	}
	return &c
}
