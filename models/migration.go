package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&TaxRate{}, &Currency{}, &DocumentType{}, &PaymentTerm{},
		&Supplier{}, &Customer{}, &Product{}, &MoneyAccount{},
		&TransactionCounter{}, &Transaction{},
		&DocumentHeader{}, &DocumentLine{}, &IdempotencyKey{},
	)
}
