// Package cart holds the shopping cart and the checkout selection. The item
// list is persisted after every mutation; the selection lives only in memory.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/event"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// GuestOwner is the event aggregate id for a cart with nobody signed in.
const GuestOwner = "guest"

// Store is the slice of the session the cart persists to.
type Store interface {
	CartItems(ctx context.Context) (domain.Items, error)
	SetCartItems(ctx context.Context, items domain.Items) error
	User(ctx context.Context) (*domain.User, error)
}

// View is a consistent read of the cart and its derived values.
type View struct {
	Items              domain.Items `json:"items"`
	Selected           []string     `json:"selected"`
	TotalItems         int          `json:"totalItems"`
	TotalPrice         int64        `json:"totalPrice"`
	SelectedItems      domain.Items `json:"selectedItems"`
	SelectedTotalPrice int64        `json:"selectedTotalPrice"`
	SelectedCount      int          `json:"selectedCount"`
}

// Controller implements the cart operations. All methods are safe for
// concurrent use.
type Controller struct {
	mu       sync.Mutex
	store    Store
	producer *event.Producer
	logger   *slog.Logger

	items    domain.Items
	selected map[string]struct{}
}

// New creates an empty cart controller. Call Load to restore persisted items.
func New(store Store, producer *event.Producer, logger *slog.Logger) *Controller {
	return &Controller{
		store:    store,
		producer: producer,
		logger:   logger,
		items:    domain.Items{},
		selected: make(map[string]struct{}),
	}
}

// Load restores the persisted items. Unreadable data leaves the cart empty.
func (c *Controller) Load(ctx context.Context) error {
	items, err := c.store.CartItems(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cart",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("load cart: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = dedupe(items)
	c.selected = make(map[string]struct{})
	return nil
}

// dedupe merges lines sharing a product id and drops empty lines, so restored
// data satisfies the same rules as live mutations.
func dedupe(items domain.Items) domain.Items {
	out := make(domain.Items, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		if i := out.IndexOf(item.ProductID); i >= 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}

// AddItem adds item, or increases the quantity of the line with the same
// product id. A zero quantity means one.
func (c *Controller) AddItem(ctx context.Context, item domain.CartItem) (domain.Items, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if err := validator.Validate(item); err != nil {
		return nil, err
	}

	var emit func()
	defer send(&emit)
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.items.Clone()
	if i := next.IndexOf(item.ProductID); i >= 0 {
		next[i].Quantity += item.Quantity
	} else {
		next = append(next, item)
	}

	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "item added to cart",
		slog.String("product_id", item.ProductID),
		slog.Int("quantity", item.Quantity),
	)
	emit = c.updatedEvent(ctx)
	return c.items.Clone(), nil
}

// RemoveItem drops the line and its selection. Missing ids are a no-op.
func (c *Controller) RemoveItem(ctx context.Context, productID string) (domain.Items, error) {
	var emit func()
	defer send(&emit)
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if emit, err = c.removeLocked(ctx, productID); err != nil {
		return nil, err
	}
	return c.items.Clone(), nil
}

// removeLocked drops the line and returns the event to send once mu is
// released, or nil when nothing changed.
func (c *Controller) removeLocked(ctx context.Context, productID string) (func(), error) {
	i := c.items.IndexOf(productID)
	if i < 0 {
		delete(c.selected, productID)
		return nil, nil
	}

	next := c.items.Clone()
	next = append(next[:i], next[i+1:]...)
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}
	delete(c.selected, productID)

	c.logger.InfoContext(ctx, "item removed from cart",
		slog.String("product_id", productID),
	)
	return c.updatedEvent(ctx), nil
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
// Missing ids are a no-op.
func (c *Controller) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Items, error) {
	var emit func()
	defer send(&emit)
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		var err error
		if emit, err = c.removeLocked(ctx, productID); err != nil {
			return nil, err
		}
		return c.items.Clone(), nil
	}

	i := c.items.IndexOf(productID)
	if i < 0 {
		return c.items.Clone(), nil
	}

	next := c.items.Clone()
	next[i].Quantity = quantity
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	emit = c.updatedEvent(ctx)
	return c.items.Clone(), nil
}

// ClearCart empties the cart and the selection.
func (c *Controller) ClearCart(ctx context.Context) error {
	var emit func()
	defer send(&emit)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.commit(ctx, domain.Items{}); err != nil {
		return err
	}
	c.selected = make(map[string]struct{})

	owner := c.owner(ctx)
	emit = func() {
		if err := c.producer.PublishCartCleared(ctx, owner); err != nil {
			c.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("owner_id", owner),
				slog.String("error", err.Error()),
			)
		}
	}
	c.logger.InfoContext(ctx, "cart cleared")
	return nil
}

// ToggleSelectItem flips the selection of a line and reports whether it is
// now selected. Ids not in the cart are never selected.
func (c *Controller) ToggleSelectItem(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.selected[productID]; ok {
		delete(c.selected, productID)
		return false
	}
	if c.items.IndexOf(productID) < 0 {
		return false
	}
	c.selected[productID] = struct{}{}
	return true
}

// SelectItems replaces the selection. Ids not in the cart are ignored.
func (c *Controller) SelectItems(productIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if c.items.IndexOf(id) >= 0 {
			c.selected[id] = struct{}{}
		}
	}
}

// Items returns a copy of the cart lines in insertion order.
func (c *Controller) Items() domain.Items {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Clone()
}

// TotalItems returns the sum of quantities.
func (c *Controller) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.TotalItems()
}

// TotalPrice returns the sum of price times quantity.
func (c *Controller) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.TotalPrice()
}

// SelectedItems returns the selected lines in cart order.
func (c *Controller) SelectedItems() domain.Items {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

// SelectedTotalPrice returns the total price of the selected lines.
func (c *Controller) SelectedTotalPrice() int64 {
	return c.SelectedItems().TotalPrice()
}

// SelectedCount returns the sum of quantities of the selected lines.
func (c *Controller) SelectedCount() int {
	return c.SelectedItems().TotalItems()
}

// Snapshot returns items, selection and totals from one consistent read.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := c.selectedLocked()
	ids := make([]string, len(selected))
	for i, item := range selected {
		ids[i] = item.ProductID
	}
	return View{
		Items:              c.items.Clone(),
		Selected:           ids,
		TotalItems:         c.items.TotalItems(),
		TotalPrice:         c.items.TotalPrice(),
		SelectedItems:      selected,
		SelectedTotalPrice: selected.TotalPrice(),
		SelectedCount:      selected.TotalItems(),
	}
}

func (c *Controller) selectedLocked() domain.Items {
	out := domain.Items{}
	for _, item := range c.items {
		if _, ok := c.selected[item.ProductID]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Checkout removes the selected lines from the cart and returns them. The
// selection is emptied.
func (c *Controller) Checkout(ctx context.Context) (domain.Receipt, error) {
	var emit func()
	defer send(&emit)
	c.mu.Lock()
	defer c.mu.Unlock()

	chosen := c.selectedLocked()
	if len(chosen) == 0 {
		return domain.Receipt{}, apperrors.InvalidInput("select at least one item to check out")
	}

	next := make(domain.Items, 0, len(c.items)-len(chosen))
	for _, item := range c.items {
		if _, ok := c.selected[item.ProductID]; !ok {
			next = append(next, item)
		}
	}
	if err := c.commit(ctx, next); err != nil {
		return domain.Receipt{}, err
	}
	c.selected = make(map[string]struct{})

	receipt := domain.Receipt{
		Items:      chosen,
		TotalPrice: chosen.TotalPrice(),
		Count:      chosen.TotalItems(),
	}

	owner := c.owner(ctx)
	emit = func() {
		if err := c.producer.PublishCartCheckedOut(ctx, owner, receipt); err != nil {
			c.logger.ErrorContext(ctx, "failed to publish cart.checked_out event",
				slog.String("owner_id", owner),
				slog.String("error", err.Error()),
			)
		}
	}
	c.logger.InfoContext(ctx, "cart checked out",
		slog.Int("lines", len(chosen)),
		slog.Int64("total_price", receipt.TotalPrice),
	)
	return receipt, nil
}

// commit persists next and then makes it the current list. Caller holds mu.
// A cancelled context leaves both untouched.
func (c *Controller) commit(ctx context.Context, next domain.Items) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.SetCartItems(ctx, next); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	c.items = next
	return nil
}

// owner returns the signed-in user id, or GuestOwner.
func (c *Controller) owner(ctx context.Context) string {
	u, err := c.store.User(ctx)
	if err != nil || u == nil || u.ID == "" {
		return GuestOwner
	}
	return u.ID
}

// updatedEvent captures cart.updated for the current items. Caller holds mu;
// the returned func must run after mu is released.
func (c *Controller) updatedEvent(ctx context.Context) func() {
	owner := c.owner(ctx)
	items := c.items.Clone()
	return func() {
		if err := c.producer.PublishCartUpdated(ctx, owner, items); err != nil {
			c.logger.ErrorContext(ctx, "failed to publish cart.updated event",
				slog.String("owner_id", owner),
				slog.String("error", err.Error()),
			)
		}
	}
}

// send runs the event a mutation captured. Mutations defer it before taking
// mu, so a slow broker never holds the cart lock.
func send(emit *func()) {
	if *emit != nil {
		(*emit)()
	}
}
