package services

import (
	"context"
	"fmt"

	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.uber.org/zap"
)

// CartService manages the per-user cart. Availability checks here give fast
// feedback only; the order flow re-checks atomically when it reserves stock.
type CartService struct {
	store  *repository.Store
	logger *zap.Logger
}

func NewCartService(store *repository.Store, logger *zap.Logger) *CartService {
	return &CartService{store: store, logger: logger}
}

// Get returns the cart joined with live product data and availability.
func (s *CartService) Get(ctx context.Context, userID string) (*models.CartView, error) {
	cart, err := s.store.Carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return s.view(ctx, cart)
}

func (s *CartService) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}
	stock, err := s.store.Inventory.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart inventory: %w", err)
	}

	view := &models.CartView{Items: make([]models.CartLine, 0, len(cart.Items))}
	for _, it := range cart.Items {
		line := models.CartLine{ProductID: it.ProductID, Qty: it.Qty}
		if inv, ok := stock[it.ProductID]; ok {
			line.Available = inv.Available()
		}
		if p, ok := products[it.ProductID]; ok {
			line.Product = p
			line.LineTotal = p.Price * int64(it.Qty)
			view.Subtotal += line.LineTotal
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}

// sellable loads an active product and its available quantity.
func (s *CartService) sellable(ctx context.Context, productID string) (*models.Product, int, error) {
	p, err := s.store.Products.FindByID(ctx, productID)
	if err != nil {
		return nil, 0, notFound(err, "Product", productID)
	}
	if !p.Active {
		return nil, 0, apperrors.Newf(apperrors.KindProductUnavailable, "Product %s is no longer available", p.Name)
	}
	available := 0
	inv, err := s.store.Inventory.GetMany(ctx, []string{productID})
	if err != nil {
		return nil, 0, fmt.Errorf("load inventory %s: %w", productID, err)
	}
	if rec, ok := inv[productID]; ok {
		available = rec.Available()
	}
	return p, available, nil
}

func notEnough(p *models.Product, available, want int) error {
	return apperrors.Newf(apperrors.KindInsufficientAvailable,
		"Only %d of %s available (requested %d)", max(available, 0), p.Name, want)
}

// mutate runs fn on the claimed cart and saves it.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(ctx context.Context, cart *models.Cart) error) (*models.CartView, error) {
	var cart *models.Cart
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.store.Carts.GetForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if err := fn(ctx, cart); err != nil {
			return err
		}
		for i := range cart.Items {
			cart.Items[i].UserID = userID
			cart.Items[i].Position = i
		}
		if err := s.store.Carts.Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem merges qty of a product into the cart.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (*models.CartView, error) {
	if qty <= 0 {
		return nil, apperrors.InvalidInput("Quantity must be greater than 0")
	}
	return s.mutate(ctx, userID, func(ctx context.Context, cart *models.Cart) error {
		p, available, err := s.sellable(ctx, productID)
		if err != nil {
			return err
		}
		idx := cart.IndexOf(productID)
		current := 0
		if idx >= 0 {
			current = cart.Items[idx].Qty
		}
		if current+qty > available {
			return notEnough(p, available, current+qty)
		}
		if idx >= 0 {
			cart.Items[idx].Qty += qty
		} else {
			cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Qty: qty})
		}
		return nil
	})
}

// UpdateItem sets the quantity of a line; zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, qty int) (*models.CartView, error) {
	if qty < 0 {
		return nil, apperrors.InvalidInput("Quantity must not be negative")
	}
	return s.mutate(ctx, userID, func(ctx context.Context, cart *models.Cart) error {
		idx := cart.IndexOf(productID)
		if idx < 0 {
			return apperrors.NotFound("Product %s is not in the cart", productID)
		}
		if qty == 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return nil
		}
		p, available, err := s.sellable(ctx, productID)
		if err != nil {
			return err
		}
		if qty > available {
			return notEnough(p, available, qty)
		}
		cart.Items[idx].Qty = qty
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*models.CartView, error) {
	return s.mutate(ctx, userID, func(_ context.Context, cart *models.Cart) error {
		if idx := cart.IndexOf(productID); idx >= 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		}
		return nil
	})
}

func (s *CartService) Clear(ctx context.Context, userID string) (*models.CartView, error) {
	return s.mutate(ctx, userID, func(_ context.Context, cart *models.Cart) error {
		cart.Items = []models.CartItem{}
		return nil
	})
}
