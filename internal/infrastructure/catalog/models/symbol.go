package models

import (
	"time"
)

// SymbolModel mirrors the metadata the upstream reports when a symbol
// resolves. One row per full symbol name, refreshed on every resolve.
type SymbolModel struct {
	Symbol      string    `gorm:"primaryKey;column:symbol;type:varchar(255);not null"`
	Name        string    `gorm:"column:name;type:varchar(255)"`
	Description string    `gorm:"column:description;type:varchar"`
	Exchange    string    `gorm:"column:exchange;type:varchar(100);index"`
	Currency    string    `gorm:"column:currency;type:varchar(20)"`
	Type        string    `gorm:"column:type;type:varchar(50)"`
	Session     string    `gorm:"column:session;type:varchar(50)"`
	Timezone    string    `gorm:"column:timezone;type:varchar(100)"`
	PriceScale  int64     `gorm:"column:pricescale;type:bigint"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
}

func (SymbolModel) TableName() string {
	return "symbols"
}
