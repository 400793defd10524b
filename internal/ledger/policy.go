package ledger

import "github.com/shopspring/decimal"

// WalletKind selects the spending policy of a wallet.
//
// On Asset wallets the balance is the value held and may not go negative.
// On CreditLine wallets the balance is the value owed and may not exceed the
// credit limit; paying more than is owed is allowed and leaves a negative
// balance.
type WalletKind string

const (
	Asset      WalletKind = "asset"
	CreditLine WalletKind = "credit_line"
)

// SignedDelta is the balance change a transaction of kind tk and the given
// amount implies for a wallet of kind wk.
//
//	         Asset     CreditLine
//	Credit   +amount   -amount
//	Debit    -amount   +amount
func SignedDelta(wk WalletKind, tk TxKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, newError(KindInvalidAmount, "amount must be positive, got %s", amount.String())
	}

	var inflow bool
	switch tk {
	case Credit:
		inflow = true
	case Debit:
		inflow = false
	default:
		return decimal.Zero, newError(KindInvalidKind, "unknown transaction kind %q", tk)
	}

	switch wk {
	case Asset:
		if inflow {
			return amount, nil
		}
		return amount.Neg(), nil
	case CreditLine:
		if inflow {
			return amount.Neg(), nil
		}
		return amount, nil
	}
	return decimal.Zero, newError(KindInvalidKind, "unknown wallet kind %q", wk)
}

// Evaluate decides whether a wallet may absorb delta and returns the
// resulting balance. It must be called with a balance read under the
// wallet's row lock. A result the store could not hold is rejected as
// KindInvalidAmount.
func Evaluate(wk WalletKind, balance, creditLimit, delta decimal.Decimal) (decimal.Decimal, error) {
	next := balance.Add(delta)
	switch wk {
	case Asset:
		if next.IsNegative() {
			return decimal.Zero, &PolicyError{Kind: KindInsufficientFunds, Balance: balance, Delta: delta}
		}
	case CreditLine:
		if next.GreaterThan(creditLimit) {
			return decimal.Zero, &PolicyError{Kind: KindInsufficientCredit, Balance: balance, Delta: delta, Limit: creditLimit}
		}
	default:
		return decimal.Zero, newError(KindInvalidKind, "unknown wallet kind %q", wk)
	}
	if err := checkStorable("resulting balance", next); err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

// evaluateWallet runs Evaluate against w using balance as the current value
// and tags any rejection with the wallet id.
func evaluateWallet(w Wallet, balance, delta decimal.Decimal) (decimal.Decimal, error) {
	next, err := Evaluate(w.Kind(), balance, w.CreditLimit, delta)
	if pe, ok := err.(*PolicyError); ok {
		pe.WalletID = w.ID
	}
	return next, err
}
