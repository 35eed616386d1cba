package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppState stores application state for checkpointing
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// BookmakerAccount holds the externally computed health of a bookmaker account
type BookmakerAccount struct {
	Name         string  `gorm:"primaryKey;size:128"`
	Status       string  `gorm:"size:32;not null"`
	StealthScore float64 `gorm:"type:decimal(5,4);not null"`
	UpdatedTS    int64   `gorm:"not null"`
}

func (BookmakerAccount) TableName() string {
	return "bookmaker_accounts"
}

// OpportunityRecord is a snapshot of a detected arbitrage opportunity
type OpportunityRecord struct {
	ID                      string  `gorm:"primaryKey;size:36"`
	Sport                   string  `gorm:"size:64;not null;index"`
	EventName               string  `gorm:"size:255;not null"`
	Market                  string  `gorm:"size:64;not null"`
	Fingerprint             string  `gorm:"size:64;not null;index"`
	ProfitPercentage        float64 `gorm:"type:decimal(10,4);not null"`
	TotalImpliedProbability float64 `gorm:"type:decimal(10,6);not null"`
	RiskLevel               string  `gorm:"size:16;not null"`
	Bookmakers              string  `gorm:"type:text;not null"` // comma-separated
	Payload                 string  `gorm:"type:text;not null"` // JSON opportunity
	DetectedTS              int64   `gorm:"not null;index"`
}

func (OpportunityRecord) TableName() string {
	return "opportunities"
}

func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (b *BookmakerAccount) BeforeSave(tx *gorm.DB) error {
	b.UpdatedTS = time.Now().Unix()
	return nil
}

func (o *OpportunityRecord) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.DetectedTS == 0 {
		o.DetectedTS = time.Now().Unix()
	}
	return nil
}
