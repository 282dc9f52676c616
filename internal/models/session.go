package models

import "time"

// DocumentSession describes an SVG document held open for editing.
type DocumentSession struct {
	FileID       string     `json:"fileId"`
	FileName     string     `json:"fileName"`
	Dirty        bool       `json:"dirty"`    // unsaved edits exist
	Revision     int        `json:"revision"` // successful edits since open
	OpenedAt     time.Time  `json:"openedAt"`
	LastAccessed time.Time  `json:"lastAccessed"`
	SavedAt      *time.Time `json:"savedAt,omitempty"`
}

// NewDocumentSession creates a clean session for a stored file.
func NewDocumentSession(fileID, fileName string) *DocumentSession {
	now := time.Now()
	return &DocumentSession{
		FileID:       fileID,
		FileName:     fileName,
		OpenedAt:     now,
		LastAccessed: now,
	}
}
