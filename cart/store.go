package cart

import (
	"sync"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Snapshot is a read-only copy of a cart handed to subscribers.
type Snapshot struct {
	Lines  []models.CartLine
	Totals models.CartTotals
}

// Store holds one cart's lines in insertion order. It is safe for concurrent
// use; subscribers are called after every mutation, outside the lock.
type Store struct {
	mu          sync.RWMutex
	lines       []models.CartLine
	taxRate     decimal.Decimal
	logger      *zap.Logger
	subscribers map[int]func(Snapshot)
	nextID      int
}

// NewStore creates a Store seeded with lines. Duplicate ids in the seed are merged.
func NewStore(taxRate decimal.Decimal, logger *zap.Logger, lines ...models.CartLine) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		taxRate:     taxRate,
		logger:      logger,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, l := range lines {
		s.merge(l)
	}
	return s
}

// Add appends a line, or increments the quantity of the line with the same id.
func (s *Store) Add(line models.CartLine) {
	s.mu.Lock()
	s.merge(line)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) merge(line models.CartLine) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if i := s.indexOf(line.ID); i >= 0 {
		s.lines[i].Quantity += line.Quantity
		if s.lines[i].Product == nil {
			s.lines[i].Product = line.Product
		}
		return
	}
	s.lines = append(s.lines, line)
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes the line.
func (s *Store) UpdateQuantity(id string, quantity int) {
	if quantity <= 0 {
		s.Remove(id)
		return
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines[i].Quantity = quantity
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the line with the given id, if any.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.mu.Unlock()
	s.notify()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
	s.notify()
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLines()
}

// Count returns the number of distinct lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Totals derives subtotal, tax and total. Lines without a product snapshot are
// skipped and logged.
func (s *Store) Totals() models.CartTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals()
}

func (s *Store) totals() models.CartTotals {
	subtotal := decimal.Zero
	count := 0
	for _, l := range s.lines {
		if l.Product == nil {
			s.logger.Warn("Skipping cart line with unresolved product", zap.String("line_id", l.ID))
			continue
		}
		subtotal = subtotal.Add(l.Product.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(s.taxRate).Round(2)
	return models.CartTotals{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		ItemCount: count,
	}
}

// Snapshot returns the lines and totals together.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Lines: s.copyLines(), Totals: s.totals()}
}

// Subscribe registers fn to be called after every change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	if len(s.subscribers) == 0 {
		s.mu.RUnlock()
		return
	}
	snap := Snapshot{Lines: s.copyLines(), Totals: s.totals()}
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyLines() []models.CartLine {
	out := make([]models.CartLine, len(s.lines))
	for i, l := range s.lines {
		if l.Product != nil {
			p := *l.Product
			l.Product = &p
		}
		out[i] = l
	}
	return out
}
