// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// Post represents a travel photo post in the Vlogy feed.
type Post struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"size:100" json:"title"`
	// Filename is either a full blob URL or, for rows written before uploads
	// moved to blob storage, a bare local filename.
	Filename  string    `gorm:"size:512" json:"filename"`
	Desc      string    `gorm:"column:desc;type:text" json:"desc"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRemote reports whether Filename already holds an absolute or rooted URL.
func (p *Post) IsRemote() bool {
	f := strings.TrimSpace(p.Filename)
	return strings.HasPrefix(f, "http://") ||
		strings.HasPrefix(f, "https://") ||
		strings.HasPrefix(f, "/")
}

// ContextLine renders the post as a single "- title: desc" record.
func (p *Post) ContextLine() string {
	return "- " + p.Title + ": " + p.Desc
}
