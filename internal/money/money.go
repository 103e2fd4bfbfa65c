package money

import (
	"errors"
	"math"
)

// All amounts are integers in the smallest currency unit (cents).
// Dollar values exist only at the display layer.

const (
	// DefaultFeePercent is the platform fee applied when a seller has no
	// custom rate configured
	DefaultFeePercent = 20.0

	// MinPriceCents is the minimum listed price ($5.00), enforced at link
	// creation time by the content service, not here
	MinPriceCents = 500
)

var (
	ErrInvalidFeePercent = errors.New("fee percent must be between 0 and 100")
	ErrNegativePrice     = errors.New("price cannot be negative")
)

// TotalCharge returns the amount the buyer pays: the base price plus the
// buyer-facing half of the platform fee, rounded to the nearest cent.
func TotalCharge(basePriceCents int64, feePercent float64) (int64, error) {
	if err := validate(basePriceCents, feePercent); err != nil {
		return 0, err
	}
	buyerFee := roundHalfUp(float64(basePriceCents) * (feePercent / 2) / 100)
	return basePriceCents + buyerFee, nil
}

// SellerShare returns the amount credited to the seller: the base price
// minus the seller-facing half of the platform fee, rounded to the nearest
// cent.
func SellerShare(basePriceCents int64, feePercent float64) (int64, error) {
	if err := validate(basePriceCents, feePercent); err != nil {
		return 0, err
	}
	return roundHalfUp(float64(basePriceCents) * (1 - (feePercent/2)/100)), nil
}

// PlatformProfit returns the platform's take: both halves of the fee, one
// charged to the buyer on top of the base price and one withheld from the
// seller's share.
func PlatformProfit(basePriceCents int64, feePercent float64) (int64, error) {
	total, err := TotalCharge(basePriceCents, feePercent)
	if err != nil {
		return 0, err
	}
	share, err := SellerShare(basePriceCents, feePercent)
	if err != nil {
		return 0, err
	}
	return total - share, nil
}

func validate(basePriceCents int64, feePercent float64) error {
	if basePriceCents < 0 {
		return ErrNegativePrice
	}
	if feePercent < 0 || feePercent > 100 {
		return ErrInvalidFeePercent
	}
	return nil
}

// roundHalfUp rounds a non-negative cent amount to the nearest whole cent,
// with .5 rounding up
func roundHalfUp(value float64) int64 {
	return int64(math.Floor(value + 0.5))
}
