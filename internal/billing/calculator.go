// Package billing computes itemized bill amounts. All functions are
// pure; persistence and transition logic live in the service layer.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nurpe/wcpms-billing/internal/model"
)

var (
	// ErrInvalidReading is returned when the current index is below the
	// previous one.
	ErrInvalidReading = errors.New("invalid meter reading")
	// ErrInvalidTariff is returned when no unit price can be resolved
	// for the consumption from the tariff's tiers.
	ErrInvalidTariff = errors.New("invalid tariff")
)

var oneHundred = decimal.NewFromInt(100)

// Breakdown is a fully itemized water bill. Every amount is rounded
// half-up to whole currency units before summation, so Total is always
// the exact sum of the three rounded line items.
type Breakdown struct {
	Consumption          decimal.Decimal
	PriceTypeName        string
	UnitPrice            decimal.Decimal
	EnvironmentFeeRate   decimal.Decimal
	VATRate              decimal.Decimal
	SubtotalAmount       decimal.Decimal
	EnvironmentFeeAmount decimal.Decimal
	VATAmount            decimal.Decimal
	TotalAmount          decimal.Decimal
}

// FeeBreakdown is the simpler form used for installation and service
// invoices: a subtotal plus VAT, no environment fee.
type FeeBreakdown struct {
	SubtotalAmount decimal.Decimal
	VATRate        decimal.Decimal
	VATAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ComputeWaterBill prices the delta between two meter indexes against a
// tariff. The unit price is resolved from the tier whose band contains
// the consumption.
func ComputeWaterBill(tariff model.Tariff, previousIndex, currentIndex decimal.Decimal) (Breakdown, error) {
	consumption := currentIndex.Sub(previousIndex)
	if consumption.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: current index %s is below previous index %s",
			ErrInvalidReading, currentIndex, previousIndex)
	}

	unitPrice, err := ResolveUnitPrice(tariff, consumption)
	if err != nil {
		return Breakdown{}, err
	}

	subtotal := roundCurrency(consumption.Mul(unitPrice))
	envFee := roundCurrency(consumption.Mul(tariff.EnvironmentFee))
	vat := roundCurrency(subtotal.Mul(tariff.VATRate.Div(oneHundred)))

	return Breakdown{
		Consumption:          consumption,
		PriceTypeName:        tariff.TypeName,
		UnitPrice:            unitPrice,
		EnvironmentFeeRate:   tariff.EnvironmentFee,
		VATRate:              tariff.VATRate,
		SubtotalAmount:       subtotal,
		EnvironmentFeeAmount: envFee,
		VATAmount:            vat,
		TotalAmount:          subtotal.Add(envFee).Add(vat),
	}, nil
}

// ComputeFee prices a flat fee (calibration, repair, installation) at
// the given VAT percentage. Rates are configuration, never literals at
// call sites.
func ComputeFee(subtotal, vatRate decimal.Decimal) FeeBreakdown {
	rounded := roundCurrency(subtotal)
	vat := roundCurrency(rounded.Mul(vatRate.Div(oneHundred)))
	return FeeBreakdown{
		SubtotalAmount: rounded,
		VATRate:        vatRate,
		VATAmount:      vat,
		TotalAmount:    rounded.Add(vat),
	}
}

// ResolveUnitPrice picks the unit price of the tier whose band contains
// the consumption. Tiers are expected ordered by ascending bound with
// the last tier unbounded; a flat tariff is a single unbounded tier.
func ResolveUnitPrice(tariff model.Tariff, consumption decimal.Decimal) (decimal.Decimal, error) {
	if len(tariff.Tiers) == 0 {
		return decimal.Zero, fmt.Errorf("%w: price type %q has no tiers", ErrInvalidTariff, tariff.PriceTypeCode)
	}
	for _, tier := range tariff.Tiers {
		if tier.UpToM3 == nil || consumption.LessThanOrEqual(*tier.UpToM3) {
			return tier.UnitPrice, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no tier covers consumption %s for price type %q",
		ErrInvalidTariff, consumption, tariff.PriceTypeCode)
}

// roundCurrency rounds half-up to whole currency units. Amounts are
// non-negative here, so decimal's round half away from zero matches the
// required half-up policy.
func roundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}
