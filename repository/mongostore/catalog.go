package mongostore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *productRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	return findOne[models.Product](ctx, r.c, bson.M{"_id": id})
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	products, err := findAll[models.Product](ctx, r.c, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return insert(ctx, r.c, p)
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = r.s.now()
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"ten":       p.Name,
		"gia":       p.Price,
		"hinhAnh":   p.Images,
		"weightKg":  p.WeightKg,
		"active":    p.Active,
		"updatedAt": p.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type inventoryRepo struct {
	s *Store
	c *mongo.Collection
}

var afterUpsert = options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

func (r *inventoryRepo) upsert(ctx context.Context, productID string, set bson.M) (*models.Inventory, error) {
	now := r.s.now()
	onInsert := bson.M{"stock": 0, "reserved": 0, "lowStockThreshold": 0, "createdAt": now, "updatedAt": now}
	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		for k := range set {
			delete(onInsert, k)
		}
		update["$set"] = set
	}

	var inv models.Inventory
	err := r.c.FindOneAndUpdate(ctx, bson.M{"productId": productID}, update, afterUpsert).Decode(&inv)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race; the other insert is visible now.
		err = r.c.FindOneAndUpdate(ctx, bson.M{"productId": productID}, update, afterUpsert).Decode(&inv)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepo) Ensure(ctx context.Context, productID string) (*models.Inventory, error) {
	return r.upsert(ctx, productID, nil)
}

func (r *inventoryRepo) Get(ctx context.Context, productID string) (*models.Inventory, error) {
	return findOne[models.Inventory](ctx, r.c, bson.M{"productId": productID})
}

func (r *inventoryRepo) GetMany(ctx context.Context, productIDs []string) (map[string]models.Inventory, error) {
	records, err := findAll[models.Inventory](ctx, r.c, bson.M{"productId": bson.M{"$in": productIDs}})
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Inventory, len(records))
	for _, inv := range records {
		out[inv.ProductID] = inv
	}
	return out, nil
}

// ApplyDelta is a single guarded $inc: the $expr only matches while the
// result keeps 0 <= reserved <= stock.
func (r *inventoryRepo) ApplyDelta(ctx context.Context, productID string, d repository.InventoryDelta) (*models.Inventory, error) {
	stock := bson.M{"$add": bson.A{"$stock", d.Stock}}
	reserved := bson.M{"$add": bson.A{"$reserved", d.Reserved}}
	filter := bson.M{
		"productId": productID,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{stock, 0}},
			bson.M{"$gte": bson.A{reserved, 0}},
			bson.M{"$lte": bson.A{reserved, stock}},
		}},
	}
	if d.IfStock != nil {
		filter["stock"] = *d.IfStock
	}
	update := bson.M{
		"$inc": bson.M{"stock": d.Stock, "reserved": d.Reserved},
		"$set": bson.M{"updatedAt": r.s.now()},
	}

	var inv models.Inventory
	err := r.c.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missOrConflict(ctx, r.c, bson.M{"productId": productID})
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepo) SetThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error) {
	return r.upsert(ctx, productID, bson.M{"lowStockThreshold": threshold, "updatedAt": r.s.now()})
}

// inventoryRow is one product joined with its inventory record.
type inventoryRow struct {
	ID                string    `bson:"_id"`
	Name              string    `bson:"ten"`
	Price             int64     `bson:"gia"`
	Images            []string  `bson:"hinhAnh"`
	Active            bool      `bson:"active"`
	Stock             int       `bson:"stock"`
	Reserved          int       `bson:"reserved"`
	LowStockThreshold int       `bson:"lowStockThreshold"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

func (row inventoryRow) view() models.InventoryView {
	v := models.NewInventoryView(models.Inventory{
		ProductID:         row.ID,
		Stock:             row.Stock,
		Reserved:          row.Reserved,
		LowStockThreshold: row.LowStockThreshold,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	})
	active := row.Active
	v.Name, v.Price, v.Images, v.Active = row.Name, row.Price, row.Images, &active
	return v
}

// joinPipeline starts from products so items without a record show up with
// zero counters.
func joinPipeline(f repository.InventoryFilter) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if q := strings.TrimSpace(f.Query); q != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"ten": bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         InventoriesCollection,
			"localField":   "_id",
			"foreignField": "productId",
			"as":           "inv",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$inv", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$project", Value: bson.M{
			"ten":               1,
			"gia":               1,
			"hinhAnh":           1,
			"active":            1,
			"stock":             bson.M{"$ifNull": bson.A{"$inv.stock", 0}},
			"reserved":          bson.M{"$ifNull": bson.A{"$inv.reserved", 0}},
			"lowStockThreshold": bson.M{"$ifNull": bson.A{"$inv.lowStockThreshold", 0}},
			"createdAt":         bson.M{"$ifNull": bson.A{"$inv.createdAt", time.Time{}}},
			"updatedAt":         bson.M{"$ifNull": bson.A{"$inv.updatedAt", time.Time{}}},
		}}},
	)
	if f.LowOnly {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"$expr": bson.M{"$lt": bson.A{"$stock", "$lowStockThreshold"}},
		}}})
	}
	return pipeline
}

func (r *inventoryRepo) List(ctx context.Context, f repository.InventoryFilter) ([]models.InventoryView, int64, error) {
	page, limit := repository.NormalizePage(f.Page, f.Limit, 20, 100)
	pipeline := append(joinPipeline(f), bson.D{{Key: "$facet", Value: bson.M{
		"items": bson.A{
			bson.M{"$sort": bson.D{{Key: "updatedAt", Value: -1}, {Key: "ten", Value: 1}, {Key: "_id", Value: 1}}},
			bson.M{"$skip": (page - 1) * limit},
			bson.M{"$limit": limit},
		},
		"total": bson.A{bson.M{"$count": "n"}},
	}}})

	cursor, err := r.s.coll(ProductsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var result []struct {
		Items []inventoryRow `bson:"items"`
		Total []struct {
			N int64 `bson:"n"`
		} `bson:"total"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, 0, err
	}

	out := []models.InventoryView{}
	var total int64
	if len(result) > 0 {
		for _, row := range result[0].Items {
			out = append(out, row.view())
		}
		if len(result[0].Total) > 0 {
			total = result[0].Total[0].N
		}
	}
	return out, total, nil
}

func (r *inventoryRepo) Summary(ctx context.Context, f repository.InventoryFilter) (*models.InventorySummary, error) {
	pipeline := append(joinPipeline(f), bson.D{{Key: "$group", Value: bson.M{
		"_id":           nil,
		"totalSku":      bson.M{"$sum": 1},
		"totalStock":    bson.M{"$sum": "$stock"},
		"totalReserved": bson.M{"$sum": "$reserved"},
		"lowCount": bson.M{"$sum": bson.M{
			"$cond": bson.A{bson.M{"$lt": bson.A{"$stock", "$lowStockThreshold"}}, 1, 0},
		}},
	}}})

	cursor, err := r.s.coll(ProductsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		TotalSku      int64 `bson:"totalSku"`
		TotalStock    int64 `bson:"totalStock"`
		TotalReserved int64 `bson:"totalReserved"`
		LowCount      int64 `bson:"lowCount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	sum := &models.InventorySummary{}
	if len(rows) > 0 {
		sum.TotalSku = rows[0].TotalSku
		sum.TotalStock = rows[0].TotalStock
		sum.TotalReserved = rows[0].TotalReserved
		sum.TotalAvailable = rows[0].TotalStock - rows[0].TotalReserved
		sum.LowCount = rows[0].LowCount
	}
	return sum, nil
}

// MovementRepo is the append-only stock movement log.
type MovementRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *MovementRepo) Append(ctx context.Context, m *models.StockMove) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	return insert(ctx, r.c, m)
}

func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]models.StockMove, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return findAll[models.StockMove](ctx, r.c, bson.M{"productId": productID}, opts)
}

// ScanSince streams every movement created at or after since, oldest first.
func (r *MovementRepo) ScanSince(ctx context.Context, since time.Time, fn func(models.StockMove) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.c.Find(ctx, bson.M{"createdAt": bson.M{"$gte": since}}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var m models.StockMove
		if err := cursor.Decode(&m); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return cursor.Err()
}

type cartRepo struct {
	s *Store
	c *mongo.Collection
}

func (r *cartRepo) load(ctx context.Context, userID string, extra bson.M) (*models.Cart, error) {
	now := r.s.now()
	update := bson.M{"$setOnInsert": bson.M{"items": bson.A{}, "createdAt": now, "updatedAt": now}}
	for k, v := range extra {
		update[k] = v
	}

	var cart models.Cart
	err := r.c.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, afterUpsert).Decode(&cart)
	if mongo.IsDuplicateKeyError(err) {
		err = r.c.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, afterUpsert).Decode(&cart)
	}
	if err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (r *cartRepo) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.load(ctx, userID, nil)
}

// GetForUpdate bumps a lock counter on the cart document. A second
// transaction touching the same cart then hits a write conflict and one of
// them aborts.
func (r *cartRepo) GetForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.load(ctx, userID, bson.M{"$inc": bson.M{"lockVersion": 1}})
}

func (r *cartRepo) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = r.s.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = cart.UpdatedAt
	}
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	_, err := r.c.UpdateOne(ctx,
		bson.M{"userId": cart.UserID},
		bson.M{
			"$set":         bson.M{"items": items, "updatedAt": cart.UpdatedAt},
			"$setOnInsert": bson.M{"createdAt": cart.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
