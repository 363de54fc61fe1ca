package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a bank-like account owned by the account directory. The engine
// only reads accounts.
type Account struct {
	ID         uuid.UUID           `json:"id"`
	UserID     uuid.UUID           `json:"user_id"`
	Name       string              `json:"name"`
	GroupName  string              `json:"group_name,omitempty"`
	IsActive   bool                `json:"is_active"`
	AmountMin  decimal.NullDecimal `json:"amount_min"`
	AmountMax  decimal.NullDecimal `json:"amount_max"`
	StrategyID uuid.NullUUID       `json:"strategy_id"`
	CreatedAt  time.Time           `json:"created_at"`
}

// NewAccount creates an active account with no overrides.
func NewAccount(userID uuid.UUID, name, group string) (*Account, error) {
	a := &Account{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		GroupName: group,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks required fields and the optional amount override.
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if a.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if a.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrValidation)
	}
	if a.AmountMin.Valid && a.AmountMax.Valid && a.AmountMax.Decimal.LessThan(a.AmountMin.Decimal) {
		return NewValidationError("amount_max", "must not be less than amount_min", ErrValidation)
	}
	return nil
}

// InGroup reports whether the account belongs to group. The empty group
// matches every account.
func (a *Account) InGroup(group string) bool {
	return group == "" || a.GroupName == group
}
