package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Operation is the requested change to an account balance.
type Operation string

const (
	OpSet      Operation = "set"
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	// OpDeposit and OpWithdrawal behave like add and subtract but record
	// deposit/withdrawal transactions instead of admin adjustments.
	OpDeposit    Operation = "deposit"
	OpWithdrawal Operation = "withdrawal"
)

// currencyScale is the number of fractional digits a balance may carry.
const currencyScale = 2

// ParseOperation validates an operation tag.
func ParseOperation(raw string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(raw))); op {
	case OpSet, OpAdd, OpSubtract, OpDeposit, OpWithdrawal:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unsupported operation %q", ErrInvalidArgument, raw)
	}
}

// Apply computes the balance after the operation.
func (op Operation) Apply(before, amount decimal.Decimal) decimal.Decimal {
	switch op {
	case OpSet:
		return amount
	case OpAdd, OpDeposit:
		return before.Add(amount)
	case OpSubtract, OpWithdrawal:
		return before.Sub(amount)
	default:
		return before
	}
}

func (op Operation) kind() TransactionKind {
	switch op {
	case OpDeposit:
		return KindDeposit
	case OpWithdrawal:
		return KindWithdrawal
	default:
		return KindAdminAdjustment
	}
}

// ParseAmount reads a decimal amount as entered by staff and validates it.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not numeric", ErrInvalidArgument, raw)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount checks that an amount is positive and carries at most two
// fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidArgument)
	}
	if !amount.Equal(amount.Round(currencyScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidArgument, amount, currencyScale)
	}
	return nil
}
