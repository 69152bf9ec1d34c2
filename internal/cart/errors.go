package cart

import (
	"errors"
	"fmt"
)

// Promo attach rejections. Match with errors.Is.
var (
	ErrAlreadyClaimed      = errors.New("diffuser already has a free scent")
	ErrScentAlreadyFree    = errors.New("scent already claimed free for another diffuser")
	ErrDiffuserNotInCart   = errors.New("diffuser not in cart")
	ErrNotEligible         = errors.New("product not eligible as free scent")
	ErrNoUnclaimedDiffuser = errors.New("no diffuser left to claim a free scent")
	ErrUnknownProduct      = errors.New("unknown product")
)

// ErrInvalidQuantity is returned when a line would exceed MaxLineQuantity.
var ErrInvalidQuantity = errors.New("invalid quantity")

// PromoError reports which diffuser and scent a rejected attach named.
type PromoError struct {
	DiffuserID string
	ScentID    string
	Err        error
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("free scent %s for diffuser %s: %v", e.ScentID, e.DiffuserID, e.Err)
}

func (e *PromoError) Unwrap() error {
	return e.Err
}
