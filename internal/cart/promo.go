package cart

// PromoSnapshot is the free-scent state derived from a cart.
type PromoSnapshot struct {
	DiffusersInCart      int      `json:"diffusers_in_cart"`
	FreeScentsClaimed    int      `json:"free_scents_claimed"`
	UnclaimedDiffusers   int      `json:"unclaimed_diffusers"`
	UnclaimedDiffuserIDs []string `json:"unclaimed_diffuser_ids"`
}

// Track derives the promo snapshot. Each paid diffuser line is one slot
// regardless of its quantity.
func Track(lines []Line) PromoSnapshot {
	snap := PromoSnapshot{UnclaimedDiffuserIDs: []string{}}
	claimed := make(map[string]bool)

	for _, l := range lines {
		if l.FreePromo {
			snap.FreeScentsClaimed++
			claimed[l.LinkedTo] = true
		}
	}
	for _, l := range lines {
		if !l.IsDiffuser() {
			continue
		}
		snap.DiffusersInCart++
		if !claimed[l.ProductID()] {
			snap.UnclaimedDiffuserIDs = append(snap.UnclaimedDiffuserIDs, l.ProductID())
		}
	}

	snap.UnclaimedDiffusers = max(0, snap.DiffusersInCart-snap.FreeScentsClaimed)
	return snap
}
