package memory

import "github.com/phrazzld/keeper-api/internal/domain"

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func cloneStrategy(s *domain.Strategy) *domain.Strategy {
	c := *s
	return &c
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}
