package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"

	"aura-storefront/internal/catalog"
	"aura-storefront/internal/storage"
)

var (
	diffuser  = catalog.Diffuser{Base: catalog.Info{ID: "stone-diffuser", Name: "Stone Diffuser", Price: 4000, VariantRef: "gid://v/1"}}
	diffuser2 = catalog.Diffuser{Base: catalog.Info{ID: "glass-diffuser", Name: "Glass Diffuser", Price: 3500, VariantRef: "gid://v/2"}}
	lavender  = catalog.Essence{Base: catalog.Info{ID: "lavender-oil", Name: "Lavender", Price: 999, VariantRef: "gid://v/3"}, VolumeML: 15}
	rose      = catalog.Essence{Base: catalog.Info{ID: "rose-petal-oil", Name: "Rose", Price: 999, VariantRef: "gid://v/4"}, VolumeML: 15}
	kit       = catalog.Accessory{Base: catalog.Info{ID: "cleaning-kit", Name: "Cleaning Kit", Price: 1200}}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, st storage.Store) *Store {
	t.Helper()
	if st == nil {
		st = storage.NewMemory()
	}
	s, err := Open(context.Background(), st, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func mustAdd(t *testing.T, s *Store, p catalog.Product, qty int, opts ...AddOption) {
	t.Helper()
	if err := s.AddToCart(context.Background(), p, qty, opts...); err != nil {
		t.Fatalf("AddToCart(%s): %v", p.Info().ID, err)
	}
}

func TestScenarioAddDiffuser(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)

	if n := len(s.Lines()); n != 1 {
		t.Fatalf("lines = %d, want 1", n)
	}
	tot := s.Totals()
	if tot.Subtotal != 4000 {
		t.Errorf("Subtotal = %d, want 4000", tot.Subtotal)
	}
	if tot.PromoSavings != 0 {
		t.Errorf("PromoSavings = %d, want 0", tot.PromoSavings)
	}
	if got := s.Promo().UnclaimedDiffusers; got != 1 {
		t.Errorf("UnclaimedDiffusers = %d, want 1", got)
	}
}

func TestScenarioAttachFreeScent(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[1].Key() != "lavender-oil-free" || !lines[1].FreePromo || lines[1].LinkedTo != "stone-diffuser" {
		t.Errorf("promo line = %+v", lines[1])
	}

	tot := s.Totals()
	if tot.PromoSavings != 999 {
		t.Errorf("PromoSavings = %d, want 999", tot.PromoSavings)
	}
	if tot.Total != 4000 {
		t.Errorf("Total = %d, want 4000", tot.Total)
	}
	if got := s.Promo().UnclaimedDiffusers; got != 0 {
		t.Errorf("UnclaimedDiffusers = %d, want 0", got)
	}
}

func TestAddToCartMergesRegularLines(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, lavender, 2)
	mustAdd(t, s, lavender, 0) // defaults to 1

	lines := s.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Errorf("lines = %+v, want one line of 3", lines)
	}
}

func TestPromoLineKeptSeparateFromPaidLine(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))
	mustAdd(t, s, lavender, 2)

	lines := s.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[1].Quantity != 1 || lines[2].Quantity != 2 || lines[2].FreePromo {
		t.Errorf("lines = %+v", lines)
	}
}

func TestPromoAttachRejections(t *testing.T) {
	tests := []struct {
		name     string
		product  catalog.Product
		diffuser string
		want     error
	}{
		{"already claimed", rose, "stone-diffuser", ErrAlreadyClaimed},
		{"diffuser not in cart", rose, "glass-diffuser", ErrDiffuserNotInCart},
		{"not an essence", kit, "stone-diffuser", ErrNotEligible},
		{"diffuser as scent", diffuser2, "stone-diffuser", ErrNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, nil)
			mustAdd(t, s, diffuser, 1)
			mustAdd(t, s, lavender, 1, FreePromo("stone-diffuser"))
			before := s.Lines()

			err := s.AddToCart(context.Background(), tt.product, 1, FreePromo(tt.diffuser))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var pe *PromoError
			if !errors.As(err, &pe) || pe.DiffuserID != tt.diffuser {
				t.Errorf("PromoError = %+v", pe)
			}
			if after := s.Lines(); len(after) != len(before) {
				t.Errorf("lines changed on rejection: %d -> %d", len(before), len(after))
			}
		})
	}
}

func TestRemoveFromCartIdempotent(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, kit, 1)

	if err := s.RemoveFromCart(ctx, kit.Base.ID); err != nil {
		t.Fatal(err)
	}
	once := s.Lines()
	if err := s.RemoveFromCart(ctx, kit.Base.ID); err != nil {
		t.Fatal(err)
	}
	twice := s.Lines()

	if !equalLines(once, twice) {
		t.Errorf("second remove changed state: %+v -> %+v", once, twice)
	}
	if err := s.RemoveFromCart(ctx, "missing"); err != nil {
		t.Errorf("remove unknown key: %v", err)
	}
}

func TestRemoveDiffuserDropsLinkedPromo(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, diffuser2, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))
	mustAdd(t, s, rose, 1, FreePromo(diffuser2.Base.ID))

	if err := s.RemoveFromCart(context.Background(), diffuser.Base.ID); err != nil {
		t.Fatal(err)
	}
	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("lines = %+v, want glass diffuser and its rose", lines)
	}
	if lines[0].ProductID() != "glass-diffuser" || lines[1].Key() != "rose-petal-oil-free" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestRemoveFreeKey(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))
	mustAdd(t, s, lavender, 1)

	if err := s.RemoveFromCart(context.Background(), "lavender-oil-free"); err != nil {
		t.Fatal(err)
	}
	lines := s.Lines()
	if len(lines) != 2 || lines[1].FreePromo {
		t.Errorf("lines = %+v, want diffuser and paid lavender", lines)
	}
	if s.Promo().UnclaimedDiffusers != 1 {
		t.Error("diffuser should be claimable again")
	}
}

func TestUpdateQuantityNonPositiveMatchesRemove(t *testing.T) {
	build := func(t *testing.T) *Store {
		s := newTestStore(t, nil)
		mustAdd(t, s, diffuser, 2)
		mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))
		mustAdd(t, s, kit, 3)
		return s
	}
	ctx := context.Background()

	for _, key := range []string{"stone-diffuser", "cleaning-kit", "lavender-oil-free", "missing"} {
		ref := build(t)
		if err := ref.RemoveFromCart(ctx, key); err != nil {
			t.Fatal(err)
		}
		for _, n := range []int{0, -1} {
			s := build(t)
			if err := s.UpdateQuantity(ctx, key, n); err != nil {
				t.Fatal(err)
			}
			if !equalLines(s.Lines(), ref.Lines()) {
				t.Errorf("UpdateQuantity(%s, %d) = %+v, want %+v", key, n, s.Lines(), ref.Lines())
			}
		}
	}
}

func TestUpdateQuantity(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))

	if err := s.UpdateQuantity(ctx, "stone-diffuser", 4); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateQuantity(ctx, "lavender-oil-free", 5); err != nil {
		t.Fatal(err)
	}
	lines := s.Lines()
	if lines[0].Quantity != 4 {
		t.Errorf("diffuser quantity = %d, want 4", lines[0].Quantity)
	}
	if lines[1].Quantity != 1 {
		t.Errorf("promo quantity = %d, want 1", lines[1].Quantity)
	}
}

func TestClearDeletesKey(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, mem)
	ctx := context.Background()
	mustAdd(t, s, diffuser, 1)

	if _, err := mem.Get(ctx, StorageKey); err != nil {
		t.Fatalf("cart not persisted: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Get(ctx, StorageKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after Clear = %v, want ErrNotFound", err)
	}
	if len(s.Lines()) != 0 {
		t.Error("lines not empty after Clear")
	}
}

func TestRemovingLastLineDeletesKey(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, mem)
	ctx := context.Background()
	mustAdd(t, s, kit, 1)

	if err := s.RemoveFromCart(ctx, kit.Base.ID); err != nil {
		t.Fatal(err)
	}
	if mem.Len() != 0 {
		t.Errorf("storage has %d keys, want 0", mem.Len())
	}
}

func TestPersistRoundTrip(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, mem)
	mustAdd(t, s, diffuser, 2)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))
	mustAdd(t, s, kit, 1)

	reloaded := newTestStore(t, mem)
	if !equalLines(s.Lines(), reloaded.Lines()) {
		t.Errorf("reloaded = %+v, want %+v", reloaded.Lines(), s.Lines())
	}
	if reloaded.Totals() != s.Totals() {
		t.Errorf("totals differ after reload")
	}
}

func TestOpenDiscardsCorruptData(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	mem.Set(ctx, StorageKey, []byte("{not json"))

	s := newTestStore(t, mem)
	if len(s.Lines()) != 0 {
		t.Error("corrupt cart should hydrate empty")
	}

	mem.Set(ctx, StorageKey, []byte(`[{"product":{"id":"x","category":"essence","price":1},"quantity":0}]`))
	s = newTestStore(t, mem)
	if len(s.Lines()) != 0 {
		t.Error("zero-quantity line should be rejected on load")
	}
}

type failingStore struct {
	storage.Store
	err error
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error { return f.err }
func (f failingStore) Delete(ctx context.Context, key string) error             { return f.err }

func TestFailedWriteLeavesCartUnchanged(t *testing.T) {
	boom := errors.New("disk full")
	s := newTestStore(t, failingStore{Store: storage.NewMemory(), err: boom})

	err := s.AddToCart(context.Background(), diffuser, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(s.Lines()) != 0 {
		t.Error("line installed despite failed write")
	}
}

func TestOpenStorageError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Open(context.Background(), getFailStore{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

type getFailStore struct {
	storage.Store
	err error
}

func (g getFailStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, g.err }

// Random operation sequences must keep every invariant.
func TestInvariantsUnderRandomOperations(t *testing.T) {
	products := []catalog.Product{diffuser, diffuser2, lavender, rose, kit}
	keys := []string{"stone-diffuser", "glass-diffuser", "lavender-oil", "rose-petal-oil",
		"cleaning-kit", "lavender-oil-free", "rose-petal-oil-free"}
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		s := newTestStore(t, nil)
		for op := 0; op < 40; op++ {
			switch rng.Intn(4) {
			case 0:
				s.AddToCart(ctx, products[rng.Intn(len(products))], rng.Intn(4)-1)
			case 1:
				d := []string{"stone-diffuser", "glass-diffuser"}[rng.Intn(2)]
				scent := []catalog.Product{lavender, rose}[rng.Intn(2)]
				s.AddToCart(ctx, scent, 1, FreePromo(d)) // rejections are expected
			case 2:
				s.RemoveFromCart(ctx, keys[rng.Intn(len(keys))])
			case 3:
				s.UpdateQuantity(ctx, keys[rng.Intn(len(keys))], rng.Intn(5)-2)
			}
			checkInvariants(t, s)
		}
	}
}

func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	lines := s.Lines()
	tot := s.Totals()

	count := 0
	linked := make(map[string]int)
	keys := make(map[string]bool)
	for _, l := range lines {
		if keys[l.Key()] {
			t.Fatalf("duplicate line key %s", l.Key())
		}
		keys[l.Key()] = true
		if l.Quantity < 1 {
			t.Fatalf("line %s has quantity %d", l.Key(), l.Quantity)
		}
		count += l.Quantity
		if l.FreePromo {
			linked[l.LinkedTo]++
			if l.Quantity != 1 {
				t.Fatalf("promo line %s has quantity %d", l.Key(), l.Quantity)
			}
		}
	}
	for d, n := range linked {
		if n > 1 {
			t.Fatalf("diffuser %s has %d promo lines", d, n)
		}
	}
	if tot.Count != count {
		t.Fatalf("Count = %d, want %d", tot.Count, count)
	}
	if tot.Total != tot.Subtotal-tot.PromoSavings {
		t.Fatalf("Total = %d, want %d", tot.Total, tot.Subtotal-tot.PromoSavings)
	}

	p := s.Promo()
	if p.UnclaimedDiffusers != max(0, p.DiffusersInCart-p.FreeScentsClaimed) {
		t.Fatalf("promo snapshot inconsistent: %+v", p)
	}
}

func equalLines(a, b []Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSnapshotConsistent(t *testing.T) {
	s := newTestStore(t, nil)
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, rose, 1, FreePromo(diffuser.Base.ID))

	lines, totals, promo := s.Snapshot()
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if totals != ComputeTotals(lines, DefaultShipping) {
		t.Errorf("totals = %+v, want totals of returned lines", totals)
	}
	if promo.FreeScentsClaimed != 1 || promo.UnclaimedDiffusers != 0 {
		t.Errorf("promo = %+v", promo)
	}
}

func TestAddToCartQuantityLimit(t *testing.T) {
	tests := []struct {
		name  string
		start int
		add   int
		want  int
		err   bool
	}{
		{"up to the limit", 0, MaxLineQuantity, MaxLineQuantity, false},
		{"merge to the limit", 499, 500, MaxLineQuantity, false},
		{"over the limit", 0, MaxLineQuantity + 1, 0, true},
		{"merge past the limit", 500, 500, 500, true},
		{"huge merge", 1, math.MaxInt, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, nil)
			if tt.start > 0 {
				mustAdd(t, s, diffuser, tt.start)
			}
			err := s.AddToCart(context.Background(), diffuser, tt.add)
			if tt.err != errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("err = %v, want ErrInvalidQuantity: %v", err, tt.err)
			}
			got := 0
			if lines := s.Lines(); len(lines) == 1 {
				got = lines[0].Quantity
			}
			if got != tt.want {
				t.Errorf("quantity = %d, want %d", got, tt.want)
			}
			checkInvariants(t, s)
		})
	}
}

func TestAddToCartRepeatedHugeAddsStayPositive(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, diffuser, math.MaxInt)
	s.AddToCart(ctx, diffuser, 1)
	s.AddToCart(ctx, diffuser, math.MaxInt)

	if c := s.Count(); c != 1 {
		t.Errorf("Count = %d, want 1", c)
	}
	if sub := s.Totals().Subtotal; sub != 4000 {
		t.Errorf("Subtotal = %d, want 4000", sub)
	}
}

func TestUpdateQuantityLimit(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	mustAdd(t, s, diffuser, 2)

	if err := s.UpdateQuantity(ctx, "stone-diffuser", MaxLineQuantity+1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
	if q := s.Lines()[0].Quantity; q != 2 {
		t.Errorf("quantity = %d, want 2", q)
	}
	if err := s.UpdateQuantity(ctx, "stone-diffuser", MaxLineQuantity); err != nil {
		t.Fatal(err)
	}
	if q := s.Lines()[0].Quantity; q != MaxLineQuantity {
		t.Errorf("quantity = %d, want %d", q, MaxLineQuantity)
	}
}

func TestOpenRejectsOversizedQuantity(t *testing.T) {
	mem := storage.NewMemory()
	mem.Set(context.Background(), StorageKey,
		[]byte(`[{"product":{"id":"x","category":"essence","price":1},"quantity":1000000}]`))
	if s := newTestStore(t, mem); len(s.Lines()) != 0 {
		t.Error("oversized line should be rejected on load")
	}
}

func TestScentFreeOnlyOnce(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	mustAdd(t, s, diffuser, 1)
	mustAdd(t, s, diffuser2, 1)
	mustAdd(t, s, lavender, 1, FreePromo(diffuser.Base.ID))

	err := s.AddToCart(ctx, lavender, 1, FreePromo(diffuser2.Base.ID))
	if !errors.Is(err, ErrScentAlreadyFree) {
		t.Fatalf("err = %v, want ErrScentAlreadyFree", err)
	}
	mustAdd(t, s, rose, 1, FreePromo(diffuser2.Base.ID))

	if err := s.RemoveFromCart(ctx, "lavender-oil-free"); err != nil {
		t.Fatal(err)
	}
	lines := s.Lines()
	if len(lines) != 3 || lines[2].Key() != "rose-petal-oil-free" {
		t.Errorf("lines = %+v, want both diffusers and the free rose", lines)
	}
	if p := s.Promo(); p.FreeScentsClaimed != 1 || len(p.UnclaimedDiffuserIDs) != 1 {
		t.Errorf("promo = %+v", p)
	}
}

func TestStoresOnOneKeyKeepEachOthersWrites(t *testing.T) {
	mem := storage.NewMemory()
	a := newTestStore(t, mem)
	b := newTestStore(t, mem)

	mustAdd(t, a, diffuser, 1)
	mustAdd(t, b, lavender, 1, FreePromo(diffuser.Base.ID))
	mustAdd(t, a, kit, 1)

	reloaded := newTestStore(t, mem)
	if n := len(reloaded.Lines()); n != 3 {
		t.Fatalf("persisted lines = %d, want 3", n)
	}
	if !equalLines(a.Lines(), reloaded.Lines()) {
		t.Errorf("writer's view = %+v, want %+v", a.Lines(), reloaded.Lines())
	}
}

func TestConcurrentAddsAcrossStores(t *testing.T) {
	mem := storage.NewMemory()
	stores := []*Store{newTestStore(t, mem), newTestStore(t, mem), newTestStore(t, mem)}
	ctx := context.Background()
	const adds = 60

	var wg sync.WaitGroup
	for i := range adds {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			if err := s.AddToCart(ctx, kit, 1); err != nil {
				t.Errorf("AddToCart: %v", err)
			}
		}(stores[i%len(stores)])
	}
	wg.Wait()

	if q := newTestStore(t, mem).Count(); q != adds {
		t.Errorf("persisted count = %d, want %d", q, adds)
	}
}

func TestRefreshPicksUpOtherWriter(t *testing.T) {
	mem := storage.NewMemory()
	a := newTestStore(t, mem)
	b := newTestStore(t, mem)
	mustAdd(t, b, diffuser, 1)

	if len(a.Lines()) != 0 {
		t.Fatal("a should not see b's write before Refresh")
	}
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(a.Lines()) != 1 {
		t.Error("Refresh did not load b's write")
	}
}
