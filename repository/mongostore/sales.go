package mongostore

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

type discountRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *discountRepo) Create(ctx context.Context, d *models.Discount) error {
	now := r.s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	return insert(ctx, r.c, d)
}

func (r *discountRepo) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	return findOne[models.Discount](ctx, r.c, bson.M{"code": code})
}

func (r *discountRepo) ListPublicActive(ctx context.Context) ([]models.Discount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "code", Value: 1}})
	return findAll[models.Discount](ctx, r.c, bson.M{"active": true, "isPublic": true}, opts)
}

func (r *discountRepo) List(ctx context.Context, page, limit int) ([]models.Discount, int64, error) {
	total, err := r.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "code", Value: 1}})
	items, err := findAll[models.Discount](ctx, r.c, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// IncrementUsed only matches while usedCount is below a positive usageLimit,
// so concurrent commits cannot overshoot it.
func (r *discountRepo) IncrementUsed(ctx context.Context, id string) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"usageLimit": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
		},
	}
	res, err := r.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"usedCount": 1},
		"$set": bson.M{"updatedAt": r.s.now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missOrConflict(ctx, r.c, bson.M{"_id": id})
	}
	return nil
}

func (r *discountRepo) Deactivate(ctx context.Context, code string) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"code": code}, bson.M{"$set": bson.M{"active": false, "updatedAt": r.s.now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type usageRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *usageRepo) Create(ctx context.Context, u *models.DiscountUsage) error {
	u.CreatedAt = r.s.now()
	return insert(ctx, r.c, u)
}

func (r *usageRepo) CountByUser(ctx context.Context, code, userID string) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{"code": code, "userId": userID})
}

type orderRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	now := r.s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	return insert(ctx, r.c, o)
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return findOne[models.Order](ctx, r.c, bson.M{"_id": id})
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": r.s.now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missOrConflict(ctx, r.c, bson.M{"_id": id})
	}
	return nil
}

func (r *orderRepo) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	return findAll[models.Order](ctx, r.c, bson.M{"userId": userID}, options.Find().SetSort(newestFirst))
}

func (r *orderRepo) FindAll(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"_id": re},
			bson.M{"thongTinNhanHang.ten": re},
			bson.M{"thongTinNhanHang.sdt": re},
		}
	}

	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := findAll[models.Order](ctx, r.c, filter, pageOptions(f.Page, f.Limit).SetSort(newestFirst))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type paymentRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return insert(ctx, r.c, p)
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	return findOne[models.Payment](ctx, r.c, bson.M{"_id": id})
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID string) ([]models.Payment, error) {
	return findAll[models.Payment](ctx, r.c, bson.M{"orderId": orderID}, options.Find().SetSort(newestFirst))
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, p *models.Payment, from models.PaymentStatus) error {
	set := bson.M{
		"status":    p.Status,
		"transId":   p.TransID,
		"updatedAt": r.s.now(),
	}
	if p.CapturedAt != nil {
		set["capturedAt"] = *p.CapturedAt
	}
	if p.FailedAt != nil {
		set["failedAt"] = *p.FailedAt
	}

	var updated models.Payment
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": p.ID, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return missOrConflict(ctx, r.c, bson.M{"_id": p.ID})
	}
	if err != nil {
		return err
	}
	*p = updated
	return nil
}

type shipmentRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *shipmentRepo) Create(ctx context.Context, sh *models.Shipment) error {
	now := r.s.now()
	sh.CreatedAt, sh.UpdatedAt = now, now
	return insert(ctx, r.c, sh)
}

func (r *shipmentRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	return findOne[models.Shipment](ctx, r.c, bson.M{"orderId": orderID})
}
