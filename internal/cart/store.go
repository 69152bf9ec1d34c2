package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"aura-storefront/internal/catalog"
	"aura-storefront/internal/storage"
)

// StorageKey is the key a single-user cart is persisted under.
const StorageKey = "aura-cart"

// Store is a handle on one persisted cart. Every mutation re-reads the
// stored lines and is persisted before it becomes visible; a failed write
// leaves the cart unchanged.
type Store struct {
	mu       sync.Mutex
	storage  storage.Store
	key      string
	shipping ShippingPolicy
	logger   *slog.Logger
	lines    []Line
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithShipping sets the shipping policy used by Totals.
func WithShipping(p ShippingPolicy) Option {
	return func(s *Store) { s.shipping = p }
}

// WithLogger sets the logger used for hydration warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// MaxLineQuantity caps the units on one line.
const MaxLineQuantity = 999

// errUnchanged lets a mutation report that the loaded cart needs no write.
var errUnchanged = errors.New("cart unchanged")

// Open hydrates a Store from st. Persisted data that cannot be decoded is
// logged and discarded; only storage failures return an error.
func Open(ctx context.Context, st storage.Store, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  st,
		key:      StorageKey,
		shipping: DefaultShipping,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the lines from storage, picking up writes by other
// Stores on the same key.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.storage.Get(ctx, s.key)
	found := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load cart %s: %w", s.key, err)
	}
	s.lines = s.decode(data, found)
	return nil
}

// decode turns a stored value into lines. Absent or unreadable data is an empty cart.
func (s *Store) decode(data []byte, found bool) []Line {
	if !found {
		return nil
	}
	lines, err := decodeLines(data)
	if err != nil {
		s.logger.Warn("discarding unreadable cart", "key", s.key, "error", err)
		return nil
	}
	return lines
}

// mutate applies fn to the persisted lines and installs the result once it
// is written. fn sees the latest stored cart, not the in-memory copy, so
// Stores sharing a key never overwrite each other's changes. Rejections from
// fn are returned as-is and nothing is written.
func (s *Store) mutate(ctx context.Context, fn func(lines []Line) ([]Line, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var loaded, next []Line
	var opErr error
	err := storage.Update(ctx, s.storage, s.key, func(current []byte, found bool) ([]byte, error) {
		loaded = s.decode(current, found)
		next, opErr = fn(slices.Clone(loaded))
		if opErr != nil {
			return nil, opErr
		}
		if len(next) == 0 {
			return nil, nil
		}
		return encodeLines(next)
	})

	switch {
	case errors.Is(opErr, errUnchanged):
		s.lines = loaded
		return nil
	case opErr != nil:
		s.lines = loaded
		return opErr
	case err != nil:
		return fmt.Errorf("save cart %s: %w", s.key, err)
	}
	if len(next) == 0 {
		next = nil
	}
	s.lines = next
	return nil
}

// AddOption modifies an AddToCart call.
type AddOption func(*addParams)

type addParams struct {
	freePromo bool
	linkedTo  string
}

// FreePromo attaches the product as the free scent for diffuserID.
func FreePromo(diffuserID string) AddOption {
	return func(p *addParams) {
		p.freePromo = true
		p.linkedTo = diffuserID
	}
}

// AddToCart adds quantity units of p (1 when quantity <= 0). A regular add
// merges into the existing regular line for the product. With FreePromo the
// product is appended as a quantity-1 promo line after validation.
func (s *Store) AddToCart(ctx context.Context, p catalog.Product, quantity int, opts ...AddOption) error {
	var params addParams
	for _, opt := range opts {
		opt(&params)
	}

	if params.freePromo {
		return s.mutate(ctx, func(lines []Line) ([]Line, error) {
			if err := checkPromo(lines, p, params.linkedTo); err != nil {
				return nil, err
			}
			return append(lines, Line{Product: p, Quantity: 1, FreePromo: true, LinkedTo: params.linkedTo}), nil
		})
	}

	if quantity <= 0 {
		quantity = 1
	}
	id := p.Info().ID
	if quantity > MaxLineQuantity {
		return quantityError(id, quantity)
	}
	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		i := slices.IndexFunc(lines, func(l Line) bool { return !l.FreePromo && l.ProductID() == id })
		if i < 0 {
			return append(lines, Line{Product: p, Quantity: quantity}), nil
		}
		if quantity > MaxLineQuantity-lines[i].Quantity {
			return nil, fmt.Errorf("%w: %s already has %d, adding %d exceeds %d",
				ErrInvalidQuantity, id, lines[i].Quantity, quantity, MaxLineQuantity)
		}
		lines[i].Quantity += quantity
		return lines, nil
	})
}

func quantityError(id string, n int) error {
	return fmt.Errorf("%w: %d of %s exceeds %d", ErrInvalidQuantity, n, id, MaxLineQuantity)
}

// checkPromo validates a free-scent attach against lines.
func checkPromo(lines []Line, p catalog.Product, diffuserID string) error {
	reject := func(err error) error {
		return &PromoError{DiffuserID: diffuserID, ScentID: p.Info().ID, Err: err}
	}
	if _, ok := p.(catalog.Essence); !ok {
		return reject(ErrNotEligible)
	}
	hasDiffuser := false
	for _, l := range lines {
		if l.FreePromo && l.LinkedTo == diffuserID {
			return reject(ErrAlreadyClaimed)
		}
		if l.IsDiffuser() && l.ProductID() == diffuserID {
			hasDiffuser = true
		}
	}
	if !hasDiffuser {
		return reject(ErrDiffuserNotInCart)
	}
	// A scent is free at most once, so its "-free" key names one line.
	for _, l := range lines {
		if l.FreePromo && l.ProductID() == p.Info().ID {
			return reject(ErrScentAlreadyFree)
		}
	}
	return nil
}

// RemoveFromCart removes every line with the given key. Removing a paid
// diffuser also drops the promo lines linked to it. Unknown keys are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, key string) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		return removeKey(lines, key)
	})
}

func removeKey(lines []Line, key string) ([]Line, error) {
	removed := make(map[string]bool)
	next := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Key() == key {
			if l.IsDiffuser() {
				removed[l.ProductID()] = true
			}
			continue
		}
		next = append(next, l)
	}
	if len(removed) > 0 {
		next = slices.DeleteFunc(next, func(l Line) bool {
			return l.FreePromo && removed[l.LinkedTo]
		})
	}
	if len(next) == len(lines) {
		return nil, errUnchanged
	}
	return next, nil
}

// UpdateQuantity sets the quantity of the regular line with the given key.
// n <= 0 removes it exactly as RemoveFromCart does. Promo lines stay at 1.
func (s *Store) UpdateQuantity(ctx context.Context, key string, n int) error {
	if n <= 0 {
		return s.RemoveFromCart(ctx, key)
	}
	if n > MaxLineQuantity {
		return quantityError(key, n)
	}
	return s.mutate(ctx, func(lines []Line) ([]Line, error) {
		i := slices.IndexFunc(lines, func(l Line) bool { return !l.FreePromo && l.Key() == key })
		if i < 0 || lines[i].Quantity == n {
			return nil, errUnchanged
		}
		lines[i].Quantity = n
		return lines, nil
	})
}

// Clear empties the cart and deletes its persisted key.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Line) ([]Line, error) { return nil, nil })
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

// Snapshot returns the lines with the totals and promo state derived from
// the same read.
func (s *Store) Snapshot() ([]Line, Totals, PromoSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines), ComputeTotals(s.lines, s.shipping), Track(s.lines)
}

func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.lines, s.shipping)
}

// Count is the total number of units in the cart.
func (s *Store) Count() int {
	return s.Totals().Count
}

// Total is the amount billed for the lines, promo lines at zero.
func (s *Store) Total() int64 {
	return s.Totals().Total
}

func (s *Store) Promo() PromoSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Track(s.lines)
}

// Key returns the storage key the cart persists under.
func (s *Store) Key() string {
	return s.key
}
