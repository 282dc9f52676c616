package models

import "time"

// File statuses.
const (
	FileStatusUploaded = "uploaded"
	FileStatusIndexing = "indexing"
	FileStatusValid    = "valid"
	FileStatusInvalid  = "invalid"
)

// FileInfo represents metadata about a stored SVG file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "indexing", "valid", "invalid"
}

// FileSummary is one row of the file listing, shaped like the original
// /fileInfo response.
type FileSummary struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"` // KB, rounded
	NumRects  int    `json:"numRects"`
	NumCircs  int    `json:"numCircs"`
	NumPaths  int    `json:"numPaths"`
	NumGroups int    `json:"numGroups"`
}

// SizeInKB rounds a byte count to whole kilobytes.
func SizeInKB(size int64) int64 {
	return (size + 512) / 1024
}
