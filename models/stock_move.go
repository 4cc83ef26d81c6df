package models

import "time"

// MovementType names one kind of change to the stock counters.
type MovementType string

const (
	MoveReceive   MovementType = "receive"
	MoveIssue     MovementType = "issue"
	MoveAdjust    MovementType = "adjust"
	MoveStocktake MovementType = "stocktake"
	MoveReserve   MovementType = "reserve"
	MoveRelease   MovementType = "release"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MoveReceive, MoveIssue, MoveAdjust, MoveStocktake, MoveReserve, MoveRelease:
		return true
	}
	return false
}

// AdjustMode is the direction of an adjust movement.
type AdjustMode string

const (
	AdjustIncrease AdjustMode = "increase"
	AdjustDecrease AdjustMode = "decrease"
)

// Reference kinds used on movements.
const (
	RefKindOrder  = "order"
	RefKindManual = "manual"
)

// MoveRef points a movement at the document that caused it.
type MoveRef struct {
	Kind string `gorm:"type:varchar(32)" bson:"kind" json:"kind"`
	ID   string `gorm:"type:varchar(36)" bson:"id,omitempty" json:"id,omitempty"`
}

// StockMove is one append-only audit entry. It is never updated or deleted.
type StockMove struct {
	ID            string       `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	ProductID     string       `gorm:"type:varchar(36);not null;index:idx_stock_moves_product_created,priority:1" bson:"productId" json:"productId"`
	Type          MovementType `gorm:"type:varchar(16);not null" bson:"type" json:"type"`
	Qty           int          `gorm:"not null" bson:"qty" json:"qty"`
	DeltaStock    int          `gorm:"not null" bson:"deltaStock" json:"deltaStock"`
	DeltaReserved int          `gorm:"not null;default:0" bson:"deltaReserved" json:"deltaReserved"`
	Ref           MoveRef      `gorm:"embedded;embeddedPrefix:ref_" bson:"ref" json:"ref"`
	Note          string       `gorm:"type:text" bson:"note" json:"note"`
	By            string       `gorm:"type:varchar(64)" bson:"by,omitempty" json:"by,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;index:idx_stock_moves_product_created,priority:2,sort:desc" bson:"createdAt" json:"createdAt"`
}

func (StockMove) TableName() string { return "stock_moves" }
