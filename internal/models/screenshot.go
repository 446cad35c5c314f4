package models

import "time"

// Screenshot is the metadata row for a captured screen image. The image
// itself lives on disk at FilePath; the row and file are removed together
// after a successful remote upload.
type Screenshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SampleID   uint      `gorm:"not null;index"`
	FilePath   string    `gorm:"size:512;not null"`
	Display    int       `gorm:"default:0"`
	RecordedAt time.Time `gorm:"not null"`
	CreatedAt  time.Time

	Sample ActivitySample `gorm:"foreignKey:SampleID"`
}
