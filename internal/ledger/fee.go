package ledger

import "errors"

// ErrInvalidInput is returned for a non-positive budget or a rate outside
// [0, 10000) basis points.
var ErrInvalidInput = errors.New("invalid fee input")

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10000

// ComputeFee returns the service fee for a budget, both in integer minor
// units. rateBps is the fee rate in basis points (500 = 5%). The division
// rounds half to even so repeated settlement never drifts in one direction.
func ComputeFee(budgetMinor, rateBps int64) (int64, error) {
	if budgetMinor <= 0 {
		return 0, ErrInvalidInput
	}
	if rateBps < 0 || rateBps >= BpsDenominator {
		return 0, ErrInvalidInput
	}

	product := budgetMinor * rateBps
	fee := product / BpsDenominator
	rem := product % BpsDenominator

	switch {
	case rem*2 > BpsDenominator:
		fee++
	case rem*2 == BpsDenominator && fee%2 != 0:
		fee++
	}
	return fee, nil
}
