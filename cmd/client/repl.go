package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/atinyakov/GophShop/internal/client/prompt"
	"github.com/atinyakov/GophShop/internal/commerce"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/routes"
	"github.com/atinyakov/GophShop/internal/session"
)

const helpText = `Available commands:
  help                         show this help
  login [admin]                sign in as customer or admin
  register [admin]             create an account
  logout                       sign out
  me                           show the current session
  refresh                      re-read the profile from the backend
  callback <url>               finish an identity-provider sign-in
  cart                         show the cart
  add <productId> [qty]        add to the cart
  remove <productId>           remove from the cart
  wishlist                     show the wishlist
  wish <productId>             add to the wishlist
  unwish <productId>           remove from the wishlist
  products [key=value...]      browse; keys: main, category, sub, page, limit, strict;
                               add "refresh" to query again instead of reusing the last result
  open <path>                  request a storefront page
  exit                         leave the shell`

// repl runs the interactive shell loop until exit or end of input.
func repl(ctx context.Context, a *app, p *prompt.Prompter) {
	for {
		line, err := p.Line("gophshop> ")
		if err != nil {
			if !errors.Is(err, prompt.ErrNoInput) {
				a.printf("read input: %v\n", err)
			}
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			a.printf("Bye\n")
			return
		}
		if err := dispatch(ctx, a, p, args); err != nil {
			a.printf("Error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, a *app, p *prompt.Prompter, args []string) error {
	switch args[0] {
	case "help":
		a.printf("%s\n", helpText)
	case "login":
		return runLogin(ctx, a, p, roleArg(args))
	case "register":
		name, email, password, err := p.Registration()
		if err != nil {
			return err
		}
		if err := a.sessions.Register(ctx, name, email, password, roleArg(args)); err != nil {
			return err
		}
		a.printf("Account created, you can now login\n")
	case "logout":
		a.sessions.Logout(ctx)
		a.printf("Signed out\n")
	case "me":
		sess := a.sessions.Current()
		if sess == nil {
			a.printf("Not signed in\n")
			return nil
		}
		return a.printJSON(sess)
	case "refresh":
		err := a.sessions.RefreshProfile(ctx)
		switch {
		case errors.Is(err, session.ErrNoSession):
			a.printf("Not signed in\n")
			return nil
		case err != nil:
			return err
		}
		sess := a.sessions.Current()
		a.printf("Profile refreshed: %s (%s)\n", displayName(sess), sess.Role)
	case "callback":
		if len(args) < 2 {
			a.printf("Usage: callback <url>\n")
			return nil
		}
		return runCallback(ctx, a, args[1])
	case "cart":
		a.printCart()
	case "add":
		if len(args) < 2 {
			a.printf("Usage: add <productId> [qty]\n")
			return nil
		}
		qty := 1
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			qty = n
		}
		return noticed(a.commerce.AddToCart(ctx, args[1], qty))
	case "remove":
		if len(args) < 2 {
			a.printf("Usage: remove <productId>\n")
			return nil
		}
		return noticed(a.commerce.RemoveFromCart(ctx, args[1]))
	case "wishlist":
		a.printWishlist()
	case "wish":
		if len(args) < 2 {
			a.printf("Usage: wish <productId>\n")
			return nil
		}
		return noticed(a.commerce.AddToWishlist(ctx, args[1]))
	case "unwish":
		if len(args) < 2 {
			a.printf("Usage: unwish <productId>\n")
			return nil
		}
		return noticed(a.commerce.RemoveFromWishlist(ctx, args[1]))
	case "products":
		filters := make([]string, 0, len(args)-1)
		for _, arg := range args[1:] {
			if arg == "refresh" {
				a.catalog.Invalidate()
				continue
			}
			filters = append(filters, arg)
		}
		f, strict, err := parseFilter(filters)
		if err != nil {
			return err
		}
		return runProducts(ctx, a, f, !strict)
	case "open":
		if len(args) < 2 {
			a.printf("Usage: open <path>\n")
			return nil
		}
		return a.open(ctx, args[1])
	default:
		a.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return nil
}

func runLogin(ctx context.Context, a *app, p *prompt.Prompter, role models.Role) error {
	email, password, err := p.Login()
	if err != nil {
		return err
	}
	landing, err := a.sessions.Login(ctx, email, password, role)
	if err != nil {
		return err
	}
	sess := a.sessions.Current()
	a.printf("Signed in as %s (%s), landing on %s\n", sess.DisplayName, sess.Role, landing)
	return nil
}

// runCallback hands the query of an identity-provider redirect URL to the
// session, the way the storefront callback endpoint does for a browser.
func runCallback(ctx context.Context, a *app, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid callback url: %w", err)
	}
	landing := a.sessions.HandleRedirect(ctx, u.Query())
	sess := a.sessions.Current()
	if landing == routes.Login || sess == nil {
		a.printf("Sign-in was rejected, go to %s\n", routes.Login)
		return nil
	}
	a.printf("Signed in as %s (%s), landing on %s\n", displayName(sess), sess.Role, landing)
	return nil
}

func runProducts(ctx context.Context, a *app, f models.ProductFilter, isCollection bool) error {
	res, err := a.catalog.Resolve(ctx, f, isCollection)
	if err != nil {
		return err
	}
	if len(res.Page.Products) == 0 {
		a.printf("No products found\n")
		return nil
	}
	if res.Relaxed() {
		a.printf("Nothing matched exactly, showing a broader selection\n")
	}
	for _, pr := range res.Page.Products {
		a.printf("%-12s %-30s %10.2f\n", pr.ID, pr.Name, pr.Price)
	}
	a.printf("Page %d of %d (%d total)\n", res.Page.Page, res.Page.TotalPages, res.Page.Total)
	return nil
}

// open requests a storefront page with the client's cookies and reports the
// status, following nothing.
func (a *app) open(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.opts.StorefrontURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.storefront.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if loc := resp.Header.Get("Location"); loc != "" {
		a.printf("%d -> %s\n", resp.StatusCode, loc)
		return nil
	}
	a.printf("%d\n", resp.StatusCode)
	return nil
}

func (a *app) printCart() {
	items := a.commerce.Cart()
	if len(items) == 0 {
		a.printf("Cart is empty (%s)\n", a.commerce.CartStatus().State)
		return
	}
	for _, it := range items {
		a.printf("%-12s %-30s x%d\n", it.ProductID, it.Product.Name, it.Quantity)
	}
	a.printf("%d item(s)\n", a.commerce.CartCount())
}

func (a *app) printWishlist() {
	items := a.commerce.Wishlist()
	if len(items) == 0 {
		a.printf("Wishlist is empty (%s)\n", a.commerce.WishlistStatus().State)
		return
	}
	for _, it := range items {
		a.printf("%-12s %s\n", it.ProductID, it.Product.Name)
	}
	a.printf("%d item(s)\n", a.commerce.WishlistCount())
}

func (a *app) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s\n", b)
	return nil
}

// noticed drops errors the commerce store already reported as a notice.
func noticed(err error) error {
	if errors.Is(err, commerce.ErrStale) || errors.Is(err, commerce.ErrClosed) {
		return err
	}
	return nil
}

func roleArg(args []string) models.Role {
	if len(args) > 1 && strings.EqualFold(args[1], "admin") {
		return models.RoleAdmin
	}
	return models.RoleCustomer
}

// parseFilter reads key=value pairs; a bare "strict" selects a strict view.
func parseFilter(args []string) (models.ProductFilter, bool, error) {
	f := models.ProductFilter{Page: 1, Limit: 12}
	strict := false
	for _, arg := range args {
		if arg == "strict" {
			strict = true
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return f, false, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "main":
			f.MainCategory = value
		case "category":
			f.Category = value
		case "sub":
			f.Subcategory = value
		case "page", "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return f, false, fmt.Errorf("invalid %s %q", key, value)
			}
			if key == "page" {
				f.Page = n
			} else {
				f.Limit = n
			}
		case "strict":
			strict = value == "true" || value == "1"
		default:
			return f, false, fmt.Errorf("unknown filter %q", key)
		}
	}
	return f, strict, nil
}
