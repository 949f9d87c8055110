package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/domain/product"
)

// Persister serializes a ledger's lines at the cart boundary so a session
// cart can survive a restart. Saves are best-effort; a save failure never
// fails the mutation that triggered it.
type Persister interface {
	Load(ctx context.Context, userID string) ([]Line, error)
	Save(ctx context.Context, userID string, lines []Line) error
}

// MemoryLedger is a session-owned in-memory cart. It is created per user,
// never shared across users, and safe for concurrent use within a session.
type MemoryLedger struct {
	userID  string
	persist Persister

	mu    sync.Mutex
	lines map[string]*Line
	order []string // product ids in insertion order, for display
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger returns an empty ledger for userID. When persist is
// non-nil, previously saved lines are restored and every mutation is saved
// back through it.
func NewMemoryLedger(ctx context.Context, userID string, persist Persister) *MemoryLedger {
	l := &MemoryLedger{
		userID:  userID,
		persist: persist,
		lines:   make(map[string]*Line),
	}
	if persist != nil {
		if saved, err := persist.Load(ctx, userID); err == nil {
			for i := range saved {
				line := saved[i]
				l.lines[line.ProductID] = &line
				l.order = append(l.order, line.ProductID)
			}
		}
	}
	return l
}

func (l *MemoryLedger) AddItem(ctx context.Context, p product.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	l.mu.Lock()
	if existing, ok := l.lines[p.ID]; ok {
		// Merge path: quantity accumulates, the original unit price stays.
		existing.Quantity += quantity
	} else {
		line := newLine(p, quantity)
		l.lines[p.ID] = &line
		l.order = append(l.order, p.ID)
	}
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.save(ctx, snapshot)
	return nil
}

func (l *MemoryLedger) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return l.RemoveItem(ctx, productID)
	}

	l.mu.Lock()
	line, ok := l.lines[productID]
	if !ok {
		l.mu.Unlock()
		return ErrNotFound
	}
	line.Quantity = quantity
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.save(ctx, snapshot)
	return nil
}

func (l *MemoryLedger) RemoveItem(ctx context.Context, productID string) error {
	l.mu.Lock()
	if _, ok := l.lines[productID]; !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.lines, productID)
	for i, id := range l.order {
		if id == productID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.save(ctx, snapshot)
	return nil
}

func (l *MemoryLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.lines = make(map[string]*Line)
	l.order = nil
	l.mu.Unlock()

	l.save(ctx, nil)
	return nil
}

func (l *MemoryLedger) Lines(context.Context) ([]Line, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked(), nil
}

func (l *MemoryLedger) TotalItems(ctx context.Context) (int, error) {
	lines, err := l.Lines(ctx)
	if err != nil {
		return 0, err
	}
	return SumItems(lines), nil
}

func (l *MemoryLedger) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	lines, err := l.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return SumPrice(lines), nil
}

// snapshotLocked copies the lines in insertion order. Caller holds l.mu.
func (l *MemoryLedger) snapshotLocked() []Line {
	out := make([]Line, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.lines[id])
	}
	return out
}

func (l *MemoryLedger) save(ctx context.Context, lines []Line) {
	if l.persist == nil {
		return
	}
	_ = l.persist.Save(ctx, l.userID, lines)
}
