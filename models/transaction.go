package models

import (
	"time"
)

// Transaction is the global document index: one row per committed header.
type Transaction struct {
	TransactionId    string     `gorm:"primaryKey;size:10" json:"transaction_id"`
	DocumentTypeCode string     `gorm:"size:20;not null;index" json:"document_type_code"`
	Module           ModuleName `gorm:"size:20;not null;index" json:"module"`
	UserId           int        `gorm:"default:0" json:"user_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
