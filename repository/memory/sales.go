package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
)

type discountRepo struct{ s *Store }

func (r *discountRepo) Create(ctx context.Context, d *models.Discount) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.discounts {
		if existing.Code == d.Code {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	record(ctx, restore(r.s.discounts, d.ID))
	r.s.discounts[d.ID] = *d
	return nil
}

func (r *discountRepo) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	defer r.s.lock(ctx)()

	for _, d := range r.s.discounts {
		if d.Code == code {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *discountRepo) sorted(keep func(models.Discount) bool) []models.Discount {
	out := []models.Discount{}
	for _, d := range r.s.discounts {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (r *discountRepo) ListPublicActive(ctx context.Context) ([]models.Discount, error) {
	defer r.s.lock(ctx)()
	return r.sorted(func(d models.Discount) bool { return d.Active && d.IsPublic }), nil
}

func (r *discountRepo) List(ctx context.Context, page, limit int) ([]models.Discount, int64, error) {
	defer r.s.lock(ctx)()

	all := r.sorted(func(models.Discount) bool { return true })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *discountRepo) IncrementUsed(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	d, ok := r.s.discounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit {
		return repository.ErrConditionFailed
	}
	record(ctx, restore(r.s.discounts, id))
	d.UsedCount++
	d.UpdatedAt = r.s.now()
	r.s.discounts[id] = d
	return nil
}

func (r *discountRepo) Deactivate(ctx context.Context, code string) error {
	defer r.s.lock(ctx)()

	for id, d := range r.s.discounts {
		if d.Code == code {
			record(ctx, restore(r.s.discounts, id))
			d.Active = false
			d.UpdatedAt = r.s.now()
			r.s.discounts[id] = d
			return nil
		}
	}
	return repository.ErrNotFound
}

type usageRepo struct{ s *Store }

func (r *usageRepo) Create(ctx context.Context, u *models.DiscountUsage) error {
	defer r.s.lock(ctx)()

	u.CreatedAt = r.s.now()
	id := u.ID
	record(ctx, func() {
		r.s.usages = removeByID(r.s.usages, id, func(u models.DiscountUsage) string { return u.ID })
	})
	r.s.usages = append(r.s.usages, *u)
	return nil
}

func (r *usageRepo) CountByUser(ctx context.Context, code, userID string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, u := range r.s.usages {
		if u.Code == code && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

type orderRepo struct{ s *Store }

func cloneOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem{}, o.Items...)
	return &o
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.orders[o.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	record(ctx, restore(r.s.orders, o.ID))
	r.s.orders[o.ID] = *cloneOrder(*o)
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	defer r.s.lock(ctx)()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	defer r.s.lock(ctx)()

	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != from {
		return repository.ErrConditionFailed
	}
	record(ctx, restore(r.s.orders, id))
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	return nil
}

func (r *orderRepo) newestFirst(keep func(*models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range r.s.orders {
		if keep(&o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *orderRepo) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	defer r.s.lock(ctx)()
	return r.newestFirst(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (r *orderRepo) FindAll(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	defer r.s.lock(ctx)()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	all := r.newestFirst(func(o *models.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(o.ID), q) ||
			strings.Contains(strings.ToLower(o.ShipInfo.Name), q) ||
			strings.Contains(strings.ToLower(o.ShipInfo.Phone), q)
	})
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	defer r.s.lock(ctx)()

	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	record(ctx, restore(r.s.payments, p.ID))
	r.s.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID string) ([]models.Payment, error) {
	defer r.s.lock(ctx)()

	out := []models.Payment{}
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, p *models.Payment, from models.PaymentStatus) error {
	defer r.s.lock(ctx)()

	cur, ok := r.s.payments[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConditionFailed
	}
	record(ctx, restore(r.s.payments, p.ID))
	cur.Status, cur.TransID = p.Status, p.TransID
	cur.CapturedAt, cur.FailedAt = p.CapturedAt, p.FailedAt
	cur.UpdatedAt = r.s.now()
	r.s.payments[p.ID] = cur
	*p = cur
	return nil
}

type shipmentRepo struct{ s *Store }

func (r *shipmentRepo) Create(ctx context.Context, sh *models.Shipment) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.shipments[sh.OrderID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	sh.CreatedAt, sh.UpdatedAt = now, now
	record(ctx, restore(r.s.shipments, sh.OrderID))
	r.s.shipments[sh.OrderID] = *sh
	return nil
}

func (r *shipmentRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	defer r.s.lock(ctx)()

	sh, ok := r.s.shipments[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sh, nil
}
