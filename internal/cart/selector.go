package cart

import (
	"context"
	"errors"
	"fmt"

	"aura-storefront/internal/catalog"
	"aura-storefront/internal/storage"
)

// pendingSuffix is appended to the cart key to store a scent chosen
// before any diffuser was in the cart.
const pendingSuffix = ":pending-scent"

// Selector picks the free scent for a diffuser.
type Selector struct {
	store   *Store
	catalog *catalog.Catalog
}

func NewSelector(store *Store, cat *catalog.Catalog) *Selector {
	return &Selector{store: store, catalog: cat}
}

// Eligible lists the essences that may be claimed free.
func (s *Selector) Eligible() []catalog.Essence {
	return s.catalog.Essences()
}

// Select attaches scentID as the free scent for diffuserID. An empty
// diffuserID targets the first unclaimed diffuser. When every diffuser is
// claimed, or none is in the cart, the choice is kept as pending and
// ErrNoUnclaimedDiffuser is returned.
func (s *Selector) Select(ctx context.Context, scentID, diffuserID string) (Line, error) {
	p, ok := s.catalog.Get(scentID)
	if !ok {
		return Line{}, fmt.Errorf("%w: %s", ErrUnknownProduct, scentID)
	}
	if _, ok := p.(catalog.Essence); !ok {
		return Line{}, &PromoError{DiffuserID: diffuserID, ScentID: scentID, Err: ErrNotEligible}
	}

	if diffuserID == "" {
		unclaimed := s.store.Promo().UnclaimedDiffuserIDs
		if len(unclaimed) == 0 {
			if err := s.setPending(ctx, scentID); err != nil {
				return Line{}, err
			}
			return Line{}, ErrNoUnclaimedDiffuser
		}
		diffuserID = unclaimed[0]
	}

	if err := s.store.AddToCart(ctx, p, 1, FreePromo(diffuserID)); err != nil {
		return Line{}, err
	}
	return Line{Product: p, Quantity: 1, FreePromo: true, LinkedTo: diffuserID}, nil
}

// Pending returns the scent waiting for a diffuser, or "" when none.
func (s *Selector) Pending(ctx context.Context) (string, error) {
	data, err := s.store.storage.Get(ctx, s.pendingKey())
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load pending scent: %w", err)
	}
	return string(data), nil
}

// ClaimPending attaches a pending scent to the first unclaimed diffuser.
// It reports whether a scent was attached. The pending choice is kept
// until a diffuser is available and dropped if the scent is no longer sold.
func (s *Selector) ClaimPending(ctx context.Context) (bool, error) {
	scentID, err := s.Pending(ctx)
	if err != nil || scentID == "" {
		return false, err
	}
	if len(s.store.Promo().UnclaimedDiffuserIDs) == 0 {
		return false, nil
	}

	_, err = s.Select(ctx, scentID, "")
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrNotEligible), errors.Is(err, ErrScentAlreadyFree):
		s.store.logger.Warn("dropping pending scent", "scent", scentID, "error", err)
	case errors.Is(err, ErrNoUnclaimedDiffuser), errors.Is(err, ErrAlreadyClaimed):
		return false, nil
	default:
		return false, err
	}

	if derr := s.store.storage.Delete(ctx, s.pendingKey()); derr != nil {
		return false, fmt.Errorf("clear pending scent: %w", derr)
	}
	return err == nil, nil
}

func (s *Selector) setPending(ctx context.Context, scentID string) error {
	if err := s.store.storage.Set(ctx, s.pendingKey(), []byte(scentID)); err != nil {
		return fmt.Errorf("save pending scent: %w", err)
	}
	return nil
}

func (s *Selector) pendingKey() string {
	return s.store.key + pendingSuffix
}
