package aggregator

import (
	"sync"
)

// Status состояние одного источника в рамках цикла сбора
type Status struct {
	Name       string `json:"name"`
	Loading    bool   `json:"loading"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
	Articles   int    `json:"articles"`
	DurationMS int64  `json:"durationMs"`
}

// StatusBoard по слоту на источник. Каждый слот обновляется ровно один раз.
type StatusBoard struct {
	mu       sync.RWMutex
	slots    []Status
	resolved []bool
}

// NewStatusBoard все источники в состоянии loading
func NewStatusBoard(names []string) *StatusBoard {
	b := &StatusBoard{
		slots:    make([]Status, len(names)),
		resolved: make([]bool, len(names)),
	}
	for i, name := range names {
		b.slots[i] = Status{Name: name, Loading: true}
	}
	return b
}

// Resolve записывает итог источника. Повторный вызов для того же слота игнорируется.
func (b *StatusBoard) Resolve(slot int, status Status) (Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.slots) || b.resolved[slot] {
		return Status{}, false
	}

	status.Name = b.slots[slot].Name
	status.Loading = false
	b.slots[slot] = status
	b.resolved[slot] = true
	return status, true
}

// Snapshot копия текущих статусов
func (b *StatusBoard) Snapshot() []Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Status, len(b.slots))
	copy(out, b.slots)
	return out
}

// Loading есть ли ещё незавершённые источники
func (b *StatusBoard) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, done := range b.resolved {
		if !done {
			return true
		}
	}
	return false
}

// FailedCount число источников, завершившихся ошибкой
func (b *StatusBoard) FailedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, s := range b.slots {
		if s.Failed {
			n++
		}
	}
	return n
}
