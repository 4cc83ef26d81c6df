package pgstore

import (
	"context"
	"strings"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"gorm.io/gorm"
)

type discountRepo struct{ s *Store }

func (r *discountRepo) Create(ctx context.Context, d *models.Discount) error {
	return mapErr(r.s.conn(ctx).Create(d).Error)
}

func (r *discountRepo) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var d models.Discount
	if err := r.s.conn(ctx).First(&d, "code = ?", code).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *discountRepo) ListPublicActive(ctx context.Context) ([]models.Discount, error) {
	out := []models.Discount{}
	err := r.s.conn(ctx).
		Where("active = ? AND is_public = ?", true, true).
		Order("created_at DESC, code ASC").
		Find(&out).Error
	return out, err
}

func (r *discountRepo) List(ctx context.Context, page, limit int) ([]models.Discount, int64, error) {
	var total int64
	if err := r.s.conn(ctx).Model(&models.Discount{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	skip, limit := offset(page, limit)
	out := []models.Discount{}
	err := r.s.conn(ctx).
		Order("created_at DESC, code ASC").
		Offset(skip).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// IncrementUsed only touches the row while a positive usage_limit is not yet
// reached, so concurrent commits cannot overshoot it.
func (r *discountRepo) IncrementUsed(ctx context.Context, id string) error {
	db := r.s.conn(ctx)
	res := db.Model(&models.Discount{}).
		Where("id = ? AND (usage_limit <= 0 OR used_count < usage_limit)", id).
		Updates(map[string]any{"used_count": gorm.Expr("used_count + 1"), "updated_at": r.s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missOrConflict(db, &models.Discount{}, "id = ?", id)
	}
	return nil
}

func (r *discountRepo) Deactivate(ctx context.Context, code string) error {
	res := r.s.conn(ctx).Model(&models.Discount{}).
		Where("code = ?", code).
		Updates(map[string]any{"active": false, "updated_at": r.s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type usageRepo struct{ s *Store }

func (r *usageRepo) Create(ctx context.Context, u *models.DiscountUsage) error {
	return mapErr(r.s.conn(ctx).Create(u).Error)
}

func (r *usageRepo) CountByUser(ctx context.Context, code, userID string) (int64, error) {
	var n int64
	err := r.s.conn(ctx).Model(&models.DiscountUsage{}).
		Where("code = ? AND user_id = ?", code, userID).
		Count(&n).Error
	return n, err
}

type orderRepo struct{ s *Store }

// Create inserts the order with its item snapshot.
func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return mapErr(r.s.conn(ctx).Create(o).Error)
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := r.s.conn(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	db := r.s.conn(ctx)
	res := db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": r.s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missOrConflict(db, &models.Order{}, "id = ?", id)
	}
	return nil
}

func (r *orderRepo) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	out := []models.Order{}
	err := r.s.conn(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *orderRepo) FindAll(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	filtered := func() *gorm.DB {
		q := r.s.conn(ctx).Model(&models.Order{})
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if query := strings.TrimSpace(f.Query); query != "" {
			like := contains(query)
			q = q.Where("id ILIKE ? OR ship_name ILIKE ? OR ship_phone ILIKE ?", like, like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	skip, limit := offset(f.Page, f.Limit)
	out := []models.Order{}
	err := filtered().Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return mapErr(r.s.conn(ctx).Create(p).Error)
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID string) ([]models.Payment, error) {
	out := []models.Payment{}
	err := r.s.conn(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, p *models.Payment, from models.PaymentStatus) error {
	db := r.s.conn(ctx)
	res := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", p.ID, from).
		Updates(map[string]any{
			"status":      p.Status,
			"trans_id":    p.TransID,
			"captured_at": p.CapturedAt,
			"failed_at":   p.FailedAt,
			"updated_at":  r.s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missOrConflict(db, &models.Payment{}, "id = ?", p.ID)
	}
	return mapErr(db.First(p, "id = ?", p.ID).Error)
}

type shipmentRepo struct{ s *Store }

// Create relies on the unique order_id index for the one-shipment rule.
func (r *shipmentRepo) Create(ctx context.Context, sh *models.Shipment) error {
	return mapErr(r.s.conn(ctx).Create(sh).Error)
}

func (r *shipmentRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	var sh models.Shipment
	if err := r.s.conn(ctx).Where("order_id = ?", orderID).First(&sh).Error; err != nil {
		return nil, mapErr(err)
	}
	return &sh, nil
}
