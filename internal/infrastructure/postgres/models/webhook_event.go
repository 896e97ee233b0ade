package models

import "time"

type WebhookEventModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	Provider       string `gorm:"size:32;not null;uniqueIndex:idx_webhook_events_provider_event,priority:1"`
	EventID        string `gorm:"size:128;not null;uniqueIndex:idx_webhook_events_provider_event,priority:2"`
	IntentID       string `gorm:"size:64;index"`
	TransactionID  string `gorm:"size:128"`
	ReportedStatus string `gorm:"size:16"`
	Outcome        string `gorm:"size:16;not null"`
	ReceivedAt     time.Time
}

func (WebhookEventModel) TableName() string { return "webhook_events" }
