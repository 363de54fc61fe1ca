package generation

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/shopspring/decimal"
)

// DefaultSearchHorizonDays caps how far the capacity search walks forward
// from an ideal date before giving up.
const DefaultSearchHorizonDays = 3650

// Random is the pseudo-random source used for every draw. *rand.Rand from
// math/rand/v2 satisfies it.
type Random interface {
	IntN(n int) int
	Int64N(n int64) int64
}

// NewRandom returns a deterministic source for seed.
func NewRandom(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Request carries everything one generation run needs. It holds no
// references to storage: the caller reads the chain state and the existing
// per-day load beforehand.
type Request struct {
	UserID     uuid.UUID
	StrategyID uuid.UUID
	Group      string
	Policy     domain.Policy
	Accounts   []*domain.Account
	Cycles     int

	// Chain is the continuation point of the (user, group) chain.
	Chain store.ChainState

	// Today is the date generation runs on. It anchors an empty chain and is
	// recorded on every task as its anchor date.
	Today time.Time

	// StartDate overrides Today as the anchor of an empty chain.
	StartDate *time.Time

	// Occupied holds the number of existing tasks per day for the user
	// across every group.
	Occupied store.DayCounts

	Now time.Time
}

// Generator produces a batch of tasks for a request.
type Generator interface {
	Generate(req Request, rng Random) ([]*domain.Task, error)
}

// RotationGenerator pairs each account with its successor in a stable
// rotation so every account sends and receives once per cycle.
type RotationGenerator struct {
	horizon int
}

var _ Generator = (*RotationGenerator)(nil)

// NewRotationGenerator creates a generator whose capacity search gives up
// after searchHorizonDays day advances. Non-positive values use the default.
func NewRotationGenerator(searchHorizonDays int) *RotationGenerator {
	if searchHorizonDays <= 0 {
		searchHorizonDays = DefaultSearchHorizonDays
	}
	return &RotationGenerator{horizon: searchHorizonDays}
}

type pair struct {
	from *domain.Account
	to   *domain.Account
	last time.Time
}

// Generate builds cycles*n tasks, or returns an error and no tasks.
func (g *RotationGenerator) Generate(req Request, rng Random) ([]*domain.Task, error) {
	if req.Cycles < 1 {
		return nil, domain.NewValidationError("cycles", "must be at least 1", domain.ErrValidation)
	}
	if err := req.Policy.CheckRanges(); err != nil {
		return nil, err
	}

	accounts := EligibleAccounts(req.Accounts, req.Group)
	if len(accounts) < 2 {
		return nil, fmt.Errorf("%w: found %d", domain.ErrInsufficientAccounts, len(accounts))
	}

	today := domain.DateOf(req.Today)
	anchor := AnchorFor(req.Chain, req.StartDate, today)

	pairs := make([]*pair, len(accounts))
	for i := range accounts {
		pairs[i] = &pair{
			from: accounts[i],
			to:   accounts[(i+1)%len(accounts)],
			last: anchor,
		}
	}

	occupied := store.DayCounts{}
	for day, n := range req.Occupied {
		occupied[day] = n
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	tasks := make([]*domain.Task, 0, req.Cycles*len(pairs))
	for c := 0; c < req.Cycles; c++ {
		cycle := req.Chain.MaxCycle + c + 1
		for _, p := range pairs {
			ideal := domain.AddDays(p.last, sampleInterval(req.Policy, rng))
			execDate, err := g.placeDate(ideal, req.Policy, occupied)
			if err != nil {
				return nil, err
			}
			occupied.Inc(execDate)
			p.last = execDate

			tasks = append(tasks, &domain.Task{
				ID:            uuid.New(),
				UserID:        req.UserID,
				StrategyID:    req.StrategyID,
				GroupName:     req.Group,
				Cycle:         cycle,
				AnchorDate:    today,
				ExecDate:      execDate,
				ExecTime:      sampleTime(req.Policy, rng),
				FromAccountID: p.from.ID,
				ToAccountID:   p.to.ID,
				Amount:        sampleAmount(req.Policy, rng),
				Memo:          fmt.Sprintf("%s -> %s", p.from.Name, p.to.Name),
				Status:        domain.TaskStatusPending,
				CreatedAt:     now,
			})
		}
	}

	return tasks, nil
}

// placeDate applies the weekend rule to ideal and then walks forward one day
// at a time until a day below the daily limit is found.
func (g *RotationGenerator) placeDate(ideal time.Time, p domain.Policy, occupied store.DayCounts) (time.Time, error) {
	date := ideal
	if p.SkipWeekend {
		date = domain.SkipWeekend(date)
	}
	for attempts := 0; occupied.Get(date) >= p.DailyLimit; attempts++ {
		if attempts >= g.horizon {
			return time.Time{}, &domain.CapacityError{
				StartDate: domain.FormatDate(ideal),
				Horizon:   g.horizon,
				Limit:     p.DailyLimit,
			}
		}
		date = domain.AddDays(date, 1)
		if p.SkipWeekend {
			date = domain.SkipWeekend(date)
		}
	}
	return date, nil
}

// AnchorFor returns the date a run measures intervals from: the latest
// exec date of a non-empty chain, else startDate, else today.
func AnchorFor(chain store.ChainState, startDate *time.Time, today time.Time) time.Time {
	switch {
	case chain.Found:
		return domain.DateOf(chain.LastExecDate)
	case startDate != nil:
		return domain.DateOf(*startDate)
	default:
		return domain.DateOf(today)
	}
}

// EligibleAccounts returns the active accounts of group in rotation order:
// creation time, then id.
func EligibleAccounts(accounts []*domain.Account, group string) []*domain.Account {
	eligible := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a != nil && a.IsActive && a.InGroup(group) {
			eligible = append(eligible, a)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return eligible
}

func sampleInterval(p domain.Policy, rng Random) int {
	return p.IntervalMin + rng.IntN(p.IntervalMax-p.IntervalMin+1)
}

func sampleTime(p domain.Policy, rng Random) domain.TimeOfDay {
	return p.TimeStart + domain.TimeOfDay(rng.IntN(int(p.TimeEnd-p.TimeStart)+1))
}

// sampleAmount draws a whole number of cents inside the policy range. A
// range narrower than one cent, or one too wide to count in int64 cents,
// yields its lower bound.
func sampleAmount(p domain.Policy, rng Random) decimal.Decimal {
	lo := p.AmountMin.Shift(2).Ceil().IntPart()
	hi := p.AmountMax.Shift(2).Floor().IntPart()
	span := hi - lo + 1
	if hi < lo || span <= 0 {
		return p.AmountMin
	}
	return decimal.New(lo+rng.Int64N(span), -2)
}
