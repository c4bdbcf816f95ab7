package usecase

import (
	"sort"
	"sync"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
)

// RunRegistry keeps finished results in memory. Results are never mutated
// after Put, so readers share them without copying.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*models.RunResult
	order []string
	max   int
}

// NewRunRegistry keeps at most max runs, evicting the oldest. max <= 0 means unbounded.
func NewRunRegistry(max int) *RunRegistry {
	return &RunRegistry{runs: make(map[string]*models.RunResult), max: max}
}

func (r *RunRegistry) Put(res *models.RunResult) {
	if res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[res.RunID]; !ok {
		r.order = append(r.order, res.RunID)
	}
	r.runs[res.RunID] = res
	for r.max > 0 && len(r.order) > r.max {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *RunRegistry) Get(runID string) (*models.RunResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.runs[runID]
	return res, ok
}

// List returns summaries, newest first.
func (r *RunRegistry) List() []models.RunSummary {
	r.mu.RLock()
	out := make([]models.RunSummary, 0, len(r.runs))
	for _, id := range r.order {
		out = append(out, r.runs[id].Summary())
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

var _ drepo.RunStore = (*RunRegistry)(nil)
