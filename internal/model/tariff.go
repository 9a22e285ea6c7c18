package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TariffStatus string

const (
	TariffStatusActive   TariffStatus = "active"
	TariffStatusInactive TariffStatus = "inactive"
)

// Tariff is the rate schedule for one price type: consumption tiers,
// the environment-fee rate per m3 and the VAT percentage. A flat tariff
// is a single tier with no upper bound.
type Tariff struct {
	ID             uint
	PriceTypeCode  string
	TypeName       string
	EnvironmentFee decimal.Decimal
	VATRate        decimal.Decimal
	Status         TariffStatus
	EffectiveDate  *time.Time
	Tiers          []TariffTier `gorm:"foreignKey:TariffID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TariffTier is one consumption band. UpToM3 is the inclusive upper
// bound of the band; nil means unbounded (the last tier).
type TariffTier struct {
	ID        uint
	TariffID  uint
	UpToM3    *decimal.Decimal
	UnitPrice decimal.Decimal
}
