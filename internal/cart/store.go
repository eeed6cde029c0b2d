package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

type Portion string

const (
	PortionFull Portion = "full"
	PortionHalf Portion = "half"
)

var ErrInvalidPortion = errors.New("portion must be full or half")

func ParsePortion(value string) (Portion, error) {
	switch Portion(value) {
	case PortionFull, PortionHalf:
		return Portion(value), nil
	}
	return "", ErrInvalidPortion
}

// Quantities is the persisted value of one cart entry.
type Quantities struct {
	Full int `json:"full"`
	Half int `json:"half"`
}

func (q Quantities) get(p Portion) int {
	if p == PortionHalf {
		return q.Half
	}
	return q.Full
}

func (q Quantities) with(p Portion, n int) Quantities {
	if p == PortionHalf {
		q.Half = n
	} else {
		q.Full = n
	}
	return q
}

func (q Quantities) empty() bool {
	return q.Full <= 0 && q.Half <= 0
}

// Line is a cart entry in order-request shape.
type Line struct {
	MenuItemID int64 `json:"menu_item_id"`
	FullQty    int   `json:"full_qty"`
	HalfQty    int   `json:"half_qty"`
}

// Snapshot is an immutable copy handed to listeners and API callers.
type Snapshot struct {
	Entries    map[string]Quantities `json:"entries"`
	Lines      []Line                `json:"lines"`
	TotalItems int                   `json:"total_items"`
}

// Store owns the cart map. It is the only copy of cart state: every mutation takes the
// lock, updates the map, persists it and notifies listeners before returning, so any
// read that follows observes it.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Quantities
	storage Storage
	key     string
	logger  *zap.Logger

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int
}

// NewStore reads persisted state once. Missing, unreadable or corrupt state yields an
// empty cart.
func NewStore(ctx context.Context, storage Storage, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		entries:   make(map[string]Quantities),
		storage:   storage,
		key:       key,
		logger:    logger,
		listeners: make(map[int]func(Snapshot)),
	}
	if storage == nil {
		return s
	}

	raw, err := storage.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("error loading cart from storage", zap.String("key", key), zap.Error(err))
		}
		return s
	}
	var saved map[string]Quantities
	if err := json.Unmarshal(raw, &saved); err != nil {
		logger.Error("error loading cart from storage", zap.String("key", key), zap.Error(err))
		return s
	}
	for id, q := range saved {
		if q.Full < 0 {
			q.Full = 0
		}
		if q.Half < 0 {
			q.Half = 0
		}
		if q.empty() {
			continue
		}
		s.entries[id] = q
	}
	return s
}

func itemKey(itemID int64) string {
	return strconv.FormatInt(itemID, 10)
}

// Add increments the portion count of an item by exactly one.
func (s *Store) Add(ctx context.Context, itemID int64, p Portion) error {
	return s.mutate(ctx, itemID, p, func(current int) int { return current + 1 })
}

// Remove decrements by exactly one, never below zero. The entry is dropped once both
// portions are zero.
func (s *Store) Remove(ctx context.Context, itemID int64, p Portion) error {
	return s.mutate(ctx, itemID, p, func(current int) int {
		if current > 0 {
			return current - 1
		}
		return 0
	})
}

// SetQuantity sets a portion count directly, clamping negatives to zero.
func (s *Store) SetQuantity(ctx context.Context, itemID int64, p Portion, n int) error {
	return s.mutate(ctx, itemID, p, func(int) int {
		if n < 0 {
			return 0
		}
		return n
	})
}

func (s *Store) mutate(ctx context.Context, itemID int64, p Portion, next func(int) int) error {
	if _, err := ParsePortion(string(p)); err != nil {
		return err
	}
	key := itemKey(itemID)

	s.mu.Lock()
	q := s.entries[key]
	q = q.with(p, next(q.get(p)))
	if q.empty() {
		delete(s.entries, key)
	} else {
		s.entries[key] = q
	}
	s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Clear empties the cart and removes the persisted key.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]Quantities)
	s.removeLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Deduct subtracts the given lines from the cart, flooring each portion at zero. Items
// added after the lines were read are kept. An emptied cart removes the persisted key.
func (s *Store) Deduct(ctx context.Context, lines []Line) {
	s.mu.Lock()
	for _, l := range lines {
		key := itemKey(l.MenuItemID)
		q, ok := s.entries[key]
		if !ok {
			continue
		}
		q.Full = max(q.Full-l.FullQty, 0)
		q.Half = max(q.Half-l.HalfQty, 0)
		if q.empty() {
			delete(s.entries, key)
		} else {
			s.entries[key] = q
		}
	}
	if len(s.entries) == 0 {
		s.removeLocked(ctx)
	} else {
		s.persistLocked(ctx)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) Quantity(itemID int64, p Portion) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[itemKey(itemID)].get(p)
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalLocked()
}

// Lines converts the cart to order lines ordered by menu item id. Keys that are not
// numeric ids are skipped.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesLocked()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change. Listeners run synchronously after the lock
// is released, in no particular order.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) removeLocked(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Remove(ctx, s.key); err != nil {
		s.logger.Error("error removing cart from storage", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.storage == nil {
		return
	}
	raw, err := json.Marshal(s.entries)
	if err != nil {
		s.logger.Error("error encoding cart", zap.Error(err))
		return
	}
	if err := s.storage.Save(ctx, s.key, raw); err != nil {
		s.logger.Error("error saving cart to storage", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) totalLocked() int {
	total := 0
	for _, q := range s.entries {
		total += q.Full + q.Half
	}
	return total
}

func (s *Store) linesLocked() []Line {
	lines := make([]Line, 0, len(s.entries))
	for key, q := range s.entries {
		if q.empty() {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn("skipping cart entry with non-numeric id", zap.String("key", key))
			continue
		}
		lines = append(lines, Line{MenuItemID: id, FullQty: q.Full, HalfQty: q.Half})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].MenuItemID < lines[j].MenuItemID })
	return lines
}

func (s *Store) snapshotLocked() Snapshot {
	entries := make(map[string]Quantities, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	return Snapshot{
		Entries:    entries,
		Lines:      s.linesLocked(),
		TotalItems: s.totalLocked(),
	}
}
