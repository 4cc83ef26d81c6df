package pgstore

import (
	"context"
	"strings"
	"time"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type productRepo struct{ s *Store }

func (r *productRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	var products []models.Product
	if err := r.s.conn(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return mapErr(r.s.conn(ctx).Create(p).Error)
}

// Update writes every editable column, including false and zero values.
func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = r.s.now()
	res := r.s.conn(ctx).Model(p).
		Select("name", "price", "images", "weight_kg", "active", "updated_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type inventoryRepo struct{ s *Store }

func (r *inventoryRepo) Ensure(ctx context.Context, productID string) (*models.Inventory, error) {
	db := r.s.conn(ctx)
	now := r.s.now()
	inv := models.Inventory{ProductID: productID, CreatedAt: now, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&inv).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, productID)
}

func (r *inventoryRepo) Get(ctx context.Context, productID string) (*models.Inventory, error) {
	var inv models.Inventory
	if err := r.s.conn(ctx).First(&inv, "product_id = ?", productID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (r *inventoryRepo) GetMany(ctx context.Context, productIDs []string) (map[string]models.Inventory, error) {
	var records []models.Inventory
	if err := r.s.conn(ctx).Where("product_id IN ?", productIDs).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.Inventory, len(records))
	for _, inv := range records {
		out[inv.ProductID] = inv
	}
	return out, nil
}

const applyDeltaSQL = `UPDATE inventories
SET stock = stock + @stock, reserved = reserved + @reserved, updated_at = @now
WHERE product_id = @id
  AND stock + @stock >= 0
  AND reserved + @reserved >= 0
  AND reserved + @reserved <= stock + @stock`

// ApplyDelta is one guarded UPDATE ... RETURNING; the row is only touched
// while the result keeps 0 <= reserved <= stock.
func (r *inventoryRepo) ApplyDelta(ctx context.Context, productID string, d repository.InventoryDelta) (*models.Inventory, error) {
	db := r.s.conn(ctx)
	args := map[string]any{"id": productID, "stock": d.Stock, "reserved": d.Reserved, "now": r.s.now()}
	query := applyDeltaSQL
	if d.IfStock != nil {
		query += "\n  AND stock = @ifStock"
		args["ifStock"] = *d.IfStock
	}
	query += "\nRETURNING *"

	var inv models.Inventory
	res := db.Raw(query, args).Scan(&inv)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, missOrConflict(db, &models.Inventory{}, "product_id = ?", productID)
	}
	return &inv, nil
}

func (r *inventoryRepo) SetThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error) {
	now := r.s.now()
	inv := models.Inventory{ProductID: productID, LowStockThreshold: threshold, CreatedAt: now, UpdatedAt: now}
	err := r.s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{"low_stock_threshold": threshold, "updated_at": now}),
	}).Create(&inv).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, productID)
}

// inventoryRow is one product joined with its inventory record.
type inventoryRow struct {
	ProductID         string
	Name              string
	Price             int64
	Images            []string `gorm:"serializer:json"`
	Active            bool
	Stock             int
	Reserved          int
	LowStockThreshold int
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
}

func (row inventoryRow) view() models.InventoryView {
	inv := models.Inventory{
		ProductID:         row.ProductID,
		Stock:             row.Stock,
		Reserved:          row.Reserved,
		LowStockThreshold: row.LowStockThreshold,
	}
	if row.CreatedAt != nil {
		inv.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		inv.UpdatedAt = *row.UpdatedAt
	}
	v := models.NewInventoryView(inv)
	active := row.Active
	v.Name, v.Price, v.Images, v.Active = row.Name, row.Price, row.Images, &active
	return v
}

// joined starts from products so items without a record show up with zero
// counters.
func (r *inventoryRepo) joined(ctx context.Context, f repository.InventoryFilter) *gorm.DB {
	q := r.s.conn(ctx).Table("products AS p").
		Joins("LEFT JOIN inventories AS i ON i.product_id = p.id")
	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where("p.name ILIKE ?", contains(query))
	}
	if f.LowOnly {
		q = q.Where("COALESCE(i.stock, 0) < COALESCE(i.low_stock_threshold, 0)")
	}
	return q
}

func (r *inventoryRepo) List(ctx context.Context, f repository.InventoryFilter) ([]models.InventoryView, int64, error) {
	var total int64
	if err := r.joined(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	skip, limit := offset(f.Page, f.Limit)
	var rows []inventoryRow
	err := r.joined(ctx, f).
		Select(`p.id AS product_id, p.name, p.price, p.images, p.active,
			COALESCE(i.stock, 0) AS stock, COALESCE(i.reserved, 0) AS reserved,
			COALESCE(i.low_stock_threshold, 0) AS low_stock_threshold, i.created_at, i.updated_at`).
		Order("i.updated_at DESC NULLS LAST, p.name ASC, p.id ASC").
		Offset(skip).Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]models.InventoryView, len(rows))
	for i, row := range rows {
		out[i] = row.view()
	}
	return out, total, nil
}

func (r *inventoryRepo) Summary(ctx context.Context, f repository.InventoryFilter) (*models.InventorySummary, error) {
	var sum models.InventorySummary
	err := r.joined(ctx, f).
		Select(`COUNT(*) AS total_sku,
			COALESCE(SUM(COALESCE(i.stock, 0)), 0) AS total_stock,
			COALESCE(SUM(COALESCE(i.reserved, 0)), 0) AS total_reserved,
			COUNT(*) FILTER (WHERE COALESCE(i.stock, 0) < COALESCE(i.low_stock_threshold, 0)) AS low_count`).
		Scan(&sum).Error
	if err != nil {
		return nil, err
	}
	sum.TotalAvailable = sum.TotalStock - sum.TotalReserved
	return &sum, nil
}

type movementRepo struct{ s *Store }

func (r *movementRepo) Append(ctx context.Context, m *models.StockMove) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	return mapErr(r.s.conn(ctx).Create(m).Error)
}

func (r *movementRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]models.StockMove, error) {
	moves := []models.StockMove{}
	err := r.s.conn(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&moves).Error
	return moves, err
}

type cartRepo struct{ s *Store }

func (r *cartRepo) load(ctx context.Context, userID string, lock bool) (*models.Cart, error) {
	db := r.s.conn(ctx)
	now := r.s.now()
	seed := models.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	q := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cart models.Cart
	if err := q.First(&cart, "user_id = ?", userID).Error; err != nil {
		return nil, mapErr(err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (r *cartRepo) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.load(ctx, userID, false)
}

// GetForUpdate takes a row lock on the cart for the rest of the transaction.
func (r *cartRepo) GetForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.load(ctx, userID, true)
}

// Save replaces the cart lines.
func (r *cartRepo) Save(ctx context.Context, cart *models.Cart) error {
	return r.s.WithinTx(ctx, func(ctx context.Context) error {
		db := r.s.conn(ctx)
		cart.UpdatedAt = r.s.now()
		if cart.CreatedAt.IsZero() {
			cart.CreatedAt = cart.UpdatedAt
		}
		err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(cart).Error
		if err != nil {
			return err
		}

		if err := db.Where("user_id = ?", cart.UserID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return nil
		}
		for i := range cart.Items {
			cart.Items[i].UserID = cart.UserID
			cart.Items[i].Position = i
		}
		return db.Create(&cart.Items).Error
	})
}
