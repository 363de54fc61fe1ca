package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default policy values applied to strategy fields the caller leaves empty.
const (
	DefaultIntervalMin = 30
	DefaultIntervalMax = 60
	DefaultDailyLimit  = 3
)

var (
	DefaultTimeStart = NewTimeOfDay(9, 0)
	DefaultTimeEnd   = NewTimeOfDay(21, 0)
	DefaultAmountMin = decimal.NewFromInt(10)
	DefaultAmountMax = decimal.NewFromInt(30)
)

// Fixed identifiers of the built-in strategies.
var (
	SystemDefaultStrategyID  = uuid.MustParse("6f1c1f52-2f0e-4c54-9d6a-000000000001")
	SystemLongTermStrategyID = uuid.MustParse("6f1c1f52-2f0e-4c54-9d6a-000000000002")
)

const maxStrategyNameLength = 100

// Upper bounds accepted for a policy. MaxAmount is the largest value the
// NUMERIC(12,2) columns hold.
const MaxIntervalDays = 3650

var MaxAmount = decimal.RequireFromString("9999999999.99")

// Policy holds the generation parameters of a strategy.
type Policy struct {
	IntervalMin int             `json:"interval_min"`
	IntervalMax int             `json:"interval_max"`
	TimeStart   TimeOfDay       `json:"time_start"`
	TimeEnd     TimeOfDay       `json:"time_end"`
	SkipWeekend bool            `json:"skip_weekend"`
	AmountMin   decimal.Decimal `json:"amount_min"`
	AmountMax   decimal.Decimal `json:"amount_max"`
	DailyLimit  int             `json:"daily_limit"`
}

// DefaultPolicy returns the policy used when a strategy leaves every field empty.
func DefaultPolicy() Policy {
	return Policy{
		IntervalMin: DefaultIntervalMin,
		IntervalMax: DefaultIntervalMax,
		TimeStart:   DefaultTimeStart,
		TimeEnd:     DefaultTimeEnd,
		AmountMin:   DefaultAmountMin,
		AmountMax:   DefaultAmountMax,
		DailyLimit:  DefaultDailyLimit,
	}
}

// Validate checks that every range in the policy is internally consistent.
// The time window must be non-empty.
func (p Policy) Validate() error {
	if err := p.CheckRanges(); err != nil {
		return err
	}
	if p.TimeStart >= p.TimeEnd {
		return NewValidationError("time_start", "must be earlier than time_end", ErrValidation)
	}
	return nil
}

// CheckRanges is the subset of Validate that generation relies on. A time
// window with equal bounds is accepted and always yields that time.
func (p Policy) CheckRanges() error {
	if p.IntervalMin < 1 {
		return NewValidationError("interval_min", "must be at least 1 day", ErrValidation)
	}
	if p.IntervalMax < p.IntervalMin {
		return NewValidationError("interval_max", "must not be less than interval_min", ErrValidation)
	}
	if p.IntervalMax > MaxIntervalDays {
		return NewValidationError("interval_max", fmt.Sprintf("must be at most %d days", MaxIntervalDays), ErrValidation)
	}
	if !p.TimeStart.Valid() {
		return NewValidationError("time_start", "must be a time of day", ErrValidation)
	}
	if !p.TimeEnd.Valid() {
		return NewValidationError("time_end", "must be a time of day", ErrValidation)
	}
	if p.TimeStart > p.TimeEnd {
		return NewValidationError("time_end", "must not be earlier than time_start", ErrValidation)
	}
	if p.AmountMin.IsNegative() {
		return NewValidationError("amount_min", "must not be negative", ErrValidation)
	}
	if p.AmountMax.LessThan(p.AmountMin) {
		return NewValidationError("amount_max", "must not be less than amount_min", ErrValidation)
	}
	if p.AmountMax.GreaterThan(MaxAmount) {
		return NewValidationError("amount_max", "must be at most "+MaxAmount.StringFixed(2), ErrValidation)
	}
	if p.DailyLimit < 1 {
		return NewValidationError("daily_limit", "must be at least 1", ErrValidation)
	}
	return nil
}

// Strategy is a named, reusable generation policy. System strategies have no
// owner and are read-only.
type Strategy struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Policy
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStrategy creates a user-owned strategy and validates it.
func NewStrategy(userID uuid.UUID, name, description string, policy Policy) (*Strategy, error) {
	now := time.Now().UTC()
	s := &Strategy{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Policy:      policy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the identity fields and the policy.
func (s *Strategy) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if !s.IsSystem && s.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if s.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrValidation)
	}
	if len(s.Name) > maxStrategyNameLength {
		return NewValidationError("name", "is too long", ErrValidation)
	}
	return s.Policy.Validate()
}

// VisibleTo reports whether userID may read the strategy.
func (s *Strategy) VisibleTo(userID uuid.UUID) bool {
	return s.IsSystem || s.UserID == userID
}

// SystemStrategies returns the built-in strategies seeded on startup.
func SystemStrategies() []Strategy {
	epoch := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	longTerm := DefaultPolicy()
	longTerm.IntervalMin = 90
	longTerm.IntervalMax = 120
	longTerm.DailyLimit = 2

	return []Strategy{
		{
			ID:          SystemDefaultStrategyID,
			Name:        "Default",
			Description: "Transfers every 30 to 60 days during the day",
			Policy:      DefaultPolicy(),
			IsSystem:    true,
			CreatedAt:   epoch,
			UpdatedAt:   epoch,
		},
		{
			ID:          SystemLongTermStrategyID,
			Name:        "Long term",
			Description: "Transfers every 90 to 120 days for dormant accounts",
			Policy:      longTerm,
			IsSystem:    true,
			CreatedAt:   epoch,
			UpdatedAt:   epoch,
		},
	}
}
