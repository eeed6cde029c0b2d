package admin

import (
	"context"
	"strings"
	"time"

	"momo-storefront/internal/api"

	"go.uber.org/zap"
)

type MenuSnapshot struct {
	Items     []api.MenuItem      `json:"items"`
	Universal []api.UniversalItem `json:"universal"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Addable lists universal items that are not on the menu yet.
func (m MenuSnapshot) Addable() []api.UniversalItem {
	out := make([]api.UniversalItem, 0, len(m.Universal))
	for _, item := range m.Universal {
		if !item.InMenu {
			out = append(out, item)
		}
	}
	return out
}

// LoadMenu fetches the admin menu and the universal catalogue.
func (d *Dashboard) LoadMenu(ctx context.Context) (MenuSnapshot, error) {
	if !d.LoggedIn() {
		return MenuSnapshot{}, ErrNotLoggedIn
	}
	token := d.menuSeq.Begin()

	items, err := d.api.GetMenuItems(ctx)
	if err != nil {
		d.logger.Warn("error loading admin menu", zap.Error(err))
		return MenuSnapshot{}, err
	}
	universal, err := d.api.GetUniversalItems(ctx)
	if err != nil {
		d.logger.Warn("error loading universal items", zap.Error(err))
		return MenuSnapshot{}, err
	}

	menu := MenuSnapshot{Items: items, Universal: universal, UpdatedAt: time.Now().UTC()}
	d.menuSeq.Apply(token, func() {
		d.mu.Lock()
		d.menu = menu
		d.mu.Unlock()
	})
	return d.Menu(), nil
}

func (d *Dashboard) Menu() MenuSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return MenuSnapshot{
		Items:     append([]api.MenuItem(nil), d.menu.Items...),
		Universal: append([]api.UniversalItem(nil), d.menu.Universal...),
		UpdatedAt: d.menu.UpdatedAt,
	}
}

func (d *Dashboard) menuItem(itemID int64) (api.MenuItem, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, item := range d.menu.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return api.MenuItem{}, false
}

// ToggleItemAvailability flips is_available for an item of the last loaded menu.
func (d *Dashboard) ToggleItemAvailability(ctx context.Context, itemID int64) (MenuSnapshot, error) {
	if !d.LoggedIn() {
		return MenuSnapshot{}, ErrNotLoggedIn
	}
	item, ok := d.menuItem(itemID)
	if !ok {
		if _, err := d.LoadMenu(ctx); err != nil {
			return MenuSnapshot{}, err
		}
		if item, ok = d.menuItem(itemID); !ok {
			return MenuSnapshot{}, ErrMenuItemNotFound
		}
	}

	next := !item.IsAvailable
	if _, err := d.api.UpdateMenuItem(ctx, itemID, api.MenuItemUpdate{IsAvailable: &next}); err != nil {
		d.logger.Warn("error updating menu item", zap.Int64("menuItemId", itemID), zap.Error(err))
		return MenuSnapshot{}, err
	}
	d.publish(ctx, Event{Type: EventMenuUpdated, MenuItemID: itemID, Detail: map[string]bool{"is_available": next}})
	return d.LoadMenu(ctx)
}

// AddFromUniversal puts a universal item on the menu, optionally overriding its prices.
func (d *Dashboard) AddFromUniversal(ctx context.Context, name string, priceFull, priceHalf *float64) (MenuSnapshot, error) {
	if !d.LoggedIn() {
		return MenuSnapshot{}, ErrNotLoggedIn
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return MenuSnapshot{}, ErrNameRequired
	}
	for _, p := range []*float64{priceFull, priceHalf} {
		if p != nil && *p < 0 {
			return MenuSnapshot{}, ErrNegativePrice
		}
	}

	item, err := d.api.AddMenuItem(ctx, api.AddMenuItemRequest{Name: name, PriceFull: priceFull, PriceHalf: priceHalf})
	if err != nil {
		d.logger.Warn("error adding menu item", zap.String("name", name), zap.Error(err))
		return MenuSnapshot{}, err
	}
	d.publish(ctx, Event{Type: EventMenuUpdated, MenuItemID: item.ID, Detail: map[string]string{"added": name}})
	return d.LoadMenu(ctx)
}
