package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCommissionRate applies whenever a stall has no configured rate or
// the lookup fails, so a misconfigured stall never blocks checkout.
var DefaultCommissionRate = decimal.NewFromInt(5)

// moneyScale is the decimal scale all derived amounts are rounded to.
const moneyScale = 2

// CommissionSplit computes the amounts for an order line.
// totalAmount = unitPrice * quantity, commissionAmount = totalAmount * rate / 100,
// sellerAmount = totalAmount - commissionAmount.
func CommissionSplit(unitPrice decimal.Decimal, quantity int, rate decimal.Decimal) (total, commission, seller decimal.Decimal) {
	total = unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	commission = total.Mul(rate).Div(decimal.NewFromInt(100)).Round(moneyScale)
	seller = total.Sub(commission)
	return total, commission, seller
}

// NewOrderCode generates a code unique enough to correlate every order and
// fund hold produced by one checkout: ORD_<unix-millis>_<8-hex>.
func NewOrderCode() string {
	millis := time.Now().UnixMilli()
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD_%d_%s", millis, suffix)
}
