package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportCategories are the reasons a member can give when reporting another.
var ReportCategories = []string{
	"Harassment",
	"Inappropriate Content",
	"Scam / Fraud",
	"Impersonation",
	"Hate Speech",
	"Other",
}

// ValidReportCategory reports whether c is one of ReportCategories.
func ValidReportCategory(c string) bool {
	for _, v := range ReportCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Report is a moderation report filed by UserID against ReportedUserID.
type Report struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"index;not null;type:varchar(36)" json:"userId"`
	ReportedUserID string    `gorm:"index;not null;type:varchar(36)" json:"reportedUserId"`
	Category       string    `gorm:"not null;type:varchar(50)" json:"category"`
	Details        string    `gorm:"type:text;not null" json:"details"`
	ContactOK      bool      `json:"contactOk"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Report) TableName() string { return "reports" }

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// ReportRequest files a report. Details must hold at least 20 characters
// once trimmed; the service checks that and the category.
type ReportRequest struct {
	Category  string `json:"category" binding:"required"`
	Details   string `json:"details" binding:"required,max=2000"`
	ContactOK bool   `json:"contactOk"`
}
