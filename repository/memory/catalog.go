package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
)

type productRepo struct{ s *Store }

func cloneProduct(p models.Product) *models.Product {
	p.Images = append([]string(nil), p.Images...)
	return &p
}

func (r *productRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	defer r.s.lock(ctx)()

	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = cloneProduct(p)
		}
	}
	return out, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.products[p.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	record(ctx, restore(r.s.products, p.ID))
	r.s.products[p.ID] = *cloneProduct(*p)
	return nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = r.s.now()
	record(ctx, restore(r.s.products, p.ID))
	r.s.products[p.ID] = *cloneProduct(*p)
	return nil
}

type inventoryRepo struct{ s *Store }

func (r *inventoryRepo) Ensure(ctx context.Context, productID string) (*models.Inventory, error) {
	defer r.s.lock(ctx)()

	inv, ok := r.s.inventory[productID]
	if !ok {
		now := r.s.now()
		inv = models.Inventory{ProductID: productID, CreatedAt: now, UpdatedAt: now}
		record(ctx, restore(r.s.inventory, productID))
		r.s.inventory[productID] = inv
	}
	return &inv, nil
}

func (r *inventoryRepo) Get(ctx context.Context, productID string) (*models.Inventory, error) {
	defer r.s.lock(ctx)()

	inv, ok := r.s.inventory[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (r *inventoryRepo) GetMany(ctx context.Context, productIDs []string) (map[string]models.Inventory, error) {
	defer r.s.lock(ctx)()

	out := make(map[string]models.Inventory, len(productIDs))
	for _, id := range productIDs {
		if inv, ok := r.s.inventory[id]; ok {
			out[id] = inv
		}
	}
	return out, nil
}

func (r *inventoryRepo) ApplyDelta(ctx context.Context, productID string, d repository.InventoryDelta) (*models.Inventory, error) {
	defer r.s.lock(ctx)()

	inv, ok := r.s.inventory[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if d.IfStock != nil && *d.IfStock != inv.Stock {
		return nil, repository.ErrConditionFailed
	}
	stock, reserved := inv.Stock+d.Stock, inv.Reserved+d.Reserved
	if stock < 0 || reserved < 0 || reserved > stock {
		return nil, repository.ErrConditionFailed
	}

	record(ctx, restore(r.s.inventory, productID))
	inv.Stock, inv.Reserved = stock, reserved
	inv.UpdatedAt = r.s.now()
	r.s.inventory[productID] = inv
	return &inv, nil
}

func (r *inventoryRepo) SetThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error) {
	defer r.s.lock(ctx)()

	now := r.s.now()
	inv, ok := r.s.inventory[productID]
	if !ok {
		inv = models.Inventory{ProductID: productID, CreatedAt: now}
	}
	record(ctx, restore(r.s.inventory, productID))
	inv.LowStockThreshold = threshold
	inv.UpdatedAt = now
	r.s.inventory[productID] = inv
	return &inv, nil
}

// views joins every product with its inventory record. Callers hold s.mu.
func (r *inventoryRepo) views(f repository.InventoryFilter) []models.InventoryView {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.InventoryView, 0, len(r.s.products))

	add := func(inv models.Inventory, p *models.Product) {
		v := models.NewInventoryView(inv)
		if p != nil {
			active := p.Active
			v.Name, v.Price, v.Images, v.Active = p.Name, p.Price, p.Images, &active
		}
		if q != "" && !strings.Contains(strings.ToLower(v.Name), q) {
			return
		}
		if f.LowOnly && !inv.IsLow() {
			return
		}
		out = append(out, v)
	}

	for id, p := range r.s.products {
		inv, ok := r.s.inventory[id]
		if !ok {
			inv = models.Inventory{ProductID: id}
		}
		add(inv, cloneProduct(p))
	}
	for id, inv := range r.s.inventory {
		if _, ok := r.s.products[id]; !ok {
			add(inv, nil)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

func (r *inventoryRepo) List(ctx context.Context, f repository.InventoryFilter) ([]models.InventoryView, int64, error) {
	defer r.s.lock(ctx)()

	all := r.views(f)
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *inventoryRepo) Summary(ctx context.Context, f repository.InventoryFilter) (*models.InventorySummary, error) {
	defer r.s.lock(ctx)()

	var sum models.InventorySummary
	for _, v := range r.views(f) {
		sum.TotalSku++
		sum.TotalStock += int64(v.Stock)
		sum.TotalReserved += int64(v.Reserved)
		sum.TotalAvailable += int64(v.Available)
		if v.IsLow() {
			sum.LowCount++
		}
	}
	return &sum, nil
}

type movementRepo struct{ s *Store }

func (r *movementRepo) Append(ctx context.Context, m *models.StockMove) error {
	defer r.s.lock(ctx)()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	id := m.ID
	record(ctx, func() {
		r.s.moves = removeByID(r.s.moves, id, func(m models.StockMove) string { return m.ID })
	})
	r.s.moves = append(r.s.moves, *m)
	return nil
}

func (r *movementRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]models.StockMove, error) {
	defer r.s.lock(ctx)()

	out := []models.StockMove{}
	for i := len(r.s.moves) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.moves[i].ProductID == productID {
			out = append(out, r.s.moves[i])
		}
	}
	return out, nil
}

type cartRepo struct{ s *Store }

func cloneCart(c models.Cart) *models.Cart {
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c
}

func (r *cartRepo) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.carts[userID]
	if !ok {
		now := r.s.now()
		c = models.Cart{UserID: userID, Items: []models.CartItem{}, CreatedAt: now, UpdatedAt: now}
		record(ctx, restore(r.s.carts, userID))
		r.s.carts[userID] = c
	}
	return cloneCart(c), nil
}

// GetForUpdate needs no claim here: transactions are already serialised.
func (r *cartRepo) GetForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.GetOrCreate(ctx, userID)
}

func (r *cartRepo) Save(ctx context.Context, cart *models.Cart) error {
	defer r.s.lock(ctx)()

	cart.UpdatedAt = r.s.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = cart.UpdatedAt
	}
	record(ctx, restore(r.s.carts, cart.UserID))
	r.s.carts[cart.UserID] = *cloneCart(*cart)
	return nil
}
