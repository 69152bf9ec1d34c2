// cartctl is a CLI over a local, file-backed Aura cart.
// Each command performs a single operation, making it composable for scripts.
// The cart persists under the "aura-cart" key in the cart directory, the
// same way the storefront keeps it in browser local storage.
//
// Commands:
//
//	cartctl products [-category C]
//	cartctl show
//	cartctl add -product ID [-qty N]
//	cartctl update -key KEY -qty N
//	cartctl remove -key KEY
//	cartctl clear
//	cartctl free-scent -scent ID [-diffuser ID]
//	cartctl checkout -proxy URL
//
// Examples:
//
//	cartctl add -product stone-diffuser
//	cartctl free-scent -scent lavender-oil
//	URL=$(cartctl checkout -proxy http://localhost:8080 -q)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aura-storefront/internal/cart"
	"aura-storefront/internal/catalog"
	"aura-storefront/internal/checkout"
	"aura-storefront/internal/model"
	"aura-storefront/internal/storage"
	"aura-storefront/internal/transport"
)

// Global flags (apply to all commands)
var (
	cartDir string
	quiet   bool
	noColor bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "products":
		runProducts(args)
	case "show":
		runShow(args)
	case "add":
		runAdd(args)
	case "update":
		runUpdate(args)
	case "remove":
		runRemove(args)
	case "clear":
		runClear(args)
	case "free-scent":
		runFreeScent(args)
	case "checkout":
		runCheckout(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - local Aura cart

Usage:
  cartctl <command> [options]

Commands:
  products    List catalog products
  show        Show cart lines, totals and free-scent status
  add         Add a product to the cart
  update      Set a line quantity (0 removes it)
  remove      Remove a line by key
  clear       Empty the cart
  free-scent  Claim a free essential oil for a diffuser
  checkout    Create a Shopify checkout through the storefront proxy

Examples:
  cartctl add -product stone-diffuser
  cartctl free-scent -scent lavender-oil
  URL=$(cartctl checkout -proxy http://localhost:8080 -q)

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the global flags on a command's flag set.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&cartDir, "dir", defaultCartDir(), "Cart directory")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the essential value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

func defaultCartDir() string {
	if dir := os.Getenv("AURA_CART_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aura"
	}
	return filepath.Join(home, ".aura")
}

// openCart hydrates the local cart from the cart directory.
func openCart(ctx context.Context) *cart.Store {
	st, err := storage.NewFile(cartDir)
	if err != nil {
		fatal("Failed to open cart directory: %v", err)
	}
	store, err := cart.Open(ctx, st)
	if err != nil {
		fatal("Failed to load cart: %v", err)
	}
	return store
}

// =============================================================================
// CATALOG
// =============================================================================

func runProducts(args []string) {
	fs := newFlagSet("products", "products [-category diffuser|essence|other]")
	var category string
	fs.StringVar(&category, "category", "", "Only list this category")
	parseFlags(fs, args)

	for _, p := range catalog.Default().All() {
		if category != "" && string(p.Category()) != category {
			continue
		}
		info := p.Info()
		if quiet {
			fmt.Println(info.ID)
			continue
		}
		price := "$" + model.FormatCents(info.Price)
		if info.CompareAtPrice > 0 {
			price += fmt.Sprintf(" %s(was $%s)%s", colorGray, model.FormatCents(info.CompareAtPrice), colorReset)
		}
		fmt.Printf("  %s%-16s%s %-28s %s\n", colorCyan, info.ID, colorReset, info.Name, price)
	}
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runShow(args []string) {
	fs := newFlagSet("show", "show [options]")
	parseFlags(fs, args)

	printCart(openCart(context.Background()))
}

func runAdd(args []string) {
	fs := newFlagSet("add", "add -product ID [-qty N]")
	var productID string
	var quantity int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity")
	parseFlags(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	cat := catalog.Default()
	p, ok := cat.Get(productID)
	if !ok {
		fatal("Unknown product: %s (see 'cartctl products')", productID)
	}

	ctx := context.Background()
	store := openCart(ctx)
	if err := store.AddToCart(ctx, p, quantity); err != nil {
		fatal("Failed to add %s: %v", productID, err)
	}
	printSuccess("Added %s", p.Info().Name)

	if _, ok := p.(catalog.Diffuser); ok {
		claimed, err := cart.NewSelector(store, cat).ClaimPending(ctx)
		if err != nil {
			printWarning("Could not attach saved free scent: %v", err)
		} else if claimed {
			printSuccess("Saved free scent attached")
		}
	}
	printCart(store)
}

func runUpdate(args []string) {
	fs := newFlagSet("update", "update -key KEY -qty N")
	var key string
	var quantity int
	fs.StringVar(&key, "key", "", "Line key (required)")
	fs.IntVar(&quantity, "qty", 1, "New quantity; 0 removes the line")
	parseFlags(fs, args)

	if key == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	store := openCart(ctx)
	if err := store.UpdateQuantity(ctx, key, quantity); err != nil {
		fatal("Failed to update %s: %v", key, err)
	}
	printCart(store)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "remove -key KEY")
	var key string
	fs.StringVar(&key, "key", "", "Line key (required)")
	parseFlags(fs, args)

	if key == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	store := openCart(ctx)
	if err := store.RemoveFromCart(ctx, key); err != nil {
		fatal("Failed to remove %s: %v", key, err)
	}
	printCart(store)
}

func runClear(args []string) {
	fs := newFlagSet("clear", "clear [options]")
	parseFlags(fs, args)

	ctx := context.Background()
	if err := openCart(ctx).Clear(ctx); err != nil {
		fatal("Failed to clear cart: %v", err)
	}
	printSuccess("Cart cleared")
}

func runFreeScent(args []string) {
	fs := newFlagSet("free-scent", "free-scent -scent ID [-diffuser ID]")
	var scentID, diffuserID string
	fs.StringVar(&scentID, "scent", "", "Essence product ID (required)")
	fs.StringVar(&diffuserID, "diffuser", "", "Diffuser to claim for (default: first unclaimed)")
	parseFlags(fs, args)

	if scentID == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	store := openCart(ctx)
	line, err := cart.NewSelector(store, catalog.Default()).Select(ctx, scentID, diffuserID)
	switch {
	case errors.Is(err, cart.ErrNoUnclaimedDiffuser):
		printWarning("No diffuser without a free scent; %s saved for the next diffuser you add", scentID)
		return
	case err != nil:
		fatal("Failed to claim free scent: %v", err)
	}
	printSuccess("%s claimed free with %s", line.Product.Info().Name, line.LinkedTo)
	printCart(store)
}

// =============================================================================
// CHECKOUT
// =============================================================================

func runCheckout(args []string) {
	fs := newFlagSet("checkout", "checkout -proxy URL [options]")
	var proxyURL string
	var timeout time.Duration
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "Storefront base URL")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	parseFlags(fs, args)

	ctx := context.Background()
	store := openCart(ctx)

	httpClient := transport.NewStorefrontClient(transport.Options{Timeout: timeout, PlainTLS: true})
	flow := checkout.NewFlow(checkout.NewBridge(checkout.NewRemoteClient(proxyURL, httpClient), nil))

	printInfo("Submitting %d line(s) to %s", len(store.Lines()), proxyURL)
	sess, err := flow.Submit(ctx, store.Lines())
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			fatal("Checkout failed (%s): %s", apiErr.Code, apiErr.Message)
		}
		fatal("Checkout failed: %v", err)
	}

	if quiet {
		fmt.Println(sess.CheckoutURL)
		return
	}
	printSuccess("Checkout created")
	fmt.Printf("  Cart: %s%s%s\n", colorGray, sess.CartID, colorReset)
	fmt.Printf("  URL:  %s%s%s\n", colorCyan, sess.CheckoutURL, colorReset)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(store *cart.Store) {
	lines, totals, promo := store.Snapshot()
	if quiet {
		fmt.Println(totals.Count)
		return
	}
	if len(lines) == 0 {
		printInfo("Cart is empty")
		return
	}

	fmt.Printf("\n%sCART%s\n", colorBold, colorReset)
	for _, l := range lines {
		info := l.Product.Info()
		amount := "$" + model.FormatCents(info.Price*int64(l.Quantity))
		if l.FreePromo {
			amount = colorGreen + "FREE" + colorReset
		}
		fmt.Printf("  %s%-22s%s %-28s x%-3d %s\n", colorCyan, l.Key(), colorReset, info.Name, l.Quantity, amount)
	}

	fmt.Printf("\n  Subtotal:  $%s\n", model.FormatCents(totals.Subtotal))
	if totals.PromoSavings > 0 {
		fmt.Printf("  Savings:  -$%s\n", model.FormatCents(totals.PromoSavings))
	}
	if totals.Shipping == 0 {
		fmt.Printf("  Shipping:  FREE\n")
	} else {
		fmt.Printf("  Shipping:  $%s %s($%s more for free shipping)%s\n",
			model.FormatCents(totals.Shipping), colorGray, model.FormatCents(totals.FreeShippingRemaining), colorReset)
	}
	fmt.Printf("  %sTotal:     $%s%s\n", colorBold, model.FormatCents(totals.GrandTotal), colorReset)

	if promo.UnclaimedDiffusers > 0 {
		printWarning("%d diffuser(s) can still claim a free scent: cartctl free-scent -scent ID", promo.UnclaimedDiffusers)
	}
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
