// Package sizing converts target notional amounts into lot-aligned share
// quantities.
package sizing

// Size computes the share quantity for a target notional at the given price,
// rounded down to a whole multiple of lotSize. The result is always a
// non-negative multiple of lotSize with result*price <= targetAmount; no
// minimum lot is forced, so small budgets legitimately size to zero.
func Size(targetAmount, price float64, lotSize int64) int64 {
	if targetAmount <= 0 || price <= 0 || lotSize <= 0 {
		return 0
	}
	base := int64(targetAmount / price)
	return (base / lotSize) * lotSize
}
