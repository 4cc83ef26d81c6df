package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.uber.org/zap"
)

const (
	CheckoutLockTTL = 30 * time.Second
	IdempotencyTTL  = 24 * time.Hour
)

// OrderService turns carts into orders and drives them through the state
// machine in order_state.go.
type OrderService struct {
	store     *repository.Store
	inventory *InventoryService
	discounts *DiscountService
	locker    repository.CheckoutLocker
	idem      repository.IdempotencyStore
	events    *EventPublisher
	metrics   awspkg.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

type OrderServiceDeps struct {
	Store       *repository.Store
	Inventory   *InventoryService
	Discounts   *DiscountService
	Locker      repository.CheckoutLocker
	Idempotency repository.IdempotencyStore
	Events      *EventPublisher
	Metrics     awspkg.Metrics
	Logger      *zap.Logger
}

func NewOrderService(d OrderServiceDeps) *OrderService {
	return &OrderService{
		store:     d.Store,
		inventory: d.Inventory,
		discounts: d.Discounts,
		locker:    d.Locker,
		idem:      d.Idempotency,
		events:    d.Events,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// afterCommit collects what a transaction did so notifications go out only
// once it committed.
type afterCommit struct {
	moves []committedMove
	codes []appliedCode
}

type committedMove struct {
	t   models.MovementType
	qty int
	inv *models.Inventory
}

type appliedCode struct {
	code   string
	target models.DiscountTarget
	amount int64
}

func (fx *afterCommit) moved(t models.MovementType, qty int, inv *models.Inventory) {
	fx.moves = append(fx.moves, committedMove{t: t, qty: qty, inv: inv})
}

func (s *OrderService) flush(ctx context.Context, o *models.Order, fx *afterCommit) {
	for _, m := range fx.moves {
		s.inventory.Committed(ctx, m.t, m.qty, m.inv)
	}
	for _, c := range fx.codes {
		recordCount(s.metrics, awspkg.MetricDiscountApplied, map[string]string{"Target": string(c.target)})
		s.events.DiscountApplied(ctx, o, c.code, c.target, c.amount)
	}
}

// NormalizeShipInfo accepts both the saved address shape and the free-form
// checkout fields and flattens them into the order snapshot.
func NormalizeShipInfo(a *models.AddressInput) models.ShipInfo {
	if a == nil {
		return models.ShipInfo{}
	}
	first := func(vals ...string) string {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return ""
	}

	address := first(a.DiaChi, a.Address)
	if address == "" {
		parts := make([]string, 0, 4)
		for _, p := range []string{a.AddressLine, a.Ward, a.District, a.Province} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		address = strings.Join(parts, ", ")
	}

	return models.ShipInfo{
		Name:    first(a.Receiver, a.Ten, a.Name),
		Phone:   first(a.Phone, a.Sdt),
		Address: address,
		Note:    first(a.Note, a.GhiChu),
	}
}

// NormalizePaymentMethod lower-cases the method and defaults to COD.
func NormalizePaymentMethod(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		return models.PaymentMethodCOD
	}
	return m
}

// ShipmentCode is "SHP" + the last 6 characters of the order id + the last 4
// digits of the unix millis, upper-cased.
func ShipmentCode(orderID string, at time.Time) string {
	id := strings.ReplaceAll(orderID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	ms := strconv.FormatInt(at.UnixMilli(), 10)
	if len(ms) > 4 {
		ms = ms[len(ms)-4:]
	}
	return strings.ToUpper("SHP" + id + ms)
}

// CreateOrder checks out the user's cart. Reservation, voucher use, the order,
// its payment or shipment and the cart clear commit together or not at all.
// A repeated idempotencyKey returns the order created the first time.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	shipInfo := NormalizeShipInfo(req.ShipInfo)
	if req.ShipInfo == nil {
		shipInfo = NormalizeShipInfo(req.Address)
	}
	if shipInfo.Name == "" || shipInfo.Phone == "" || shipInfo.Address == "" {
		return nil, apperrors.InvalidInput("Receiver name, phone and address are required")
	}

	if idempotencyKey != "" && s.idem != nil {
		if orderID, err := s.idem.Lookup(ctx, userID, idempotencyKey); err != nil {
			s.logger.Warn("Idempotency lookup failed", logger.RequestIDField(ctx), zap.String("user_id", userID), zap.Error(err))
		} else if orderID != "" {
			return s.findOrder(ctx, orderID)
		}
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, userID, CheckoutLockTTL)
		switch {
		case errors.Is(err, repository.ErrLockHeld):
			recordCount(s.metrics, awspkg.MetricCheckoutConflicts, nil)
			return nil, apperrors.Conflict("Another checkout is already in progress")
		case err != nil:
			// The cart claim inside the transaction still serialises checkouts.
			s.logger.Warn("Checkout lock unavailable", logger.RequestIDField(ctx), zap.String("user_id", userID), zap.Error(err))
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		PaymentMethod: NormalizePaymentMethod(req.PaymentMethod),
		ShipInfo:      shipInfo,
		Status:        models.OrderPending,
	}
	fx := &afterCommit{}

	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		*fx = afterCommit{}
		return s.checkout(ctx, order, req, fx)
	})
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, userID, idempotencyKey, order.ID, IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", logger.RequestIDField(ctx), zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.logger.Info("Order created",
		logger.RequestIDField(ctx),
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("payable", order.Payable()),
		zap.String("payment_method", order.PaymentMethod),
		zap.Int("items", len(order.Items)),
	)
	recordCount(s.metrics, awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": order.PaymentMethod})
	recordValue(s.metrics, awspkg.MetricOrderValue, float64(order.Payable()), nil)
	s.flush(ctx, order, fx)
	s.events.OrderCreated(ctx, order)
	return order, nil
}

func (s *OrderService) checkout(ctx context.Context, order *models.Order, req *models.CreateOrderRequest, fx *afterCommit) error {
	cart, err := s.store.Carts.GetForUpdate(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return apperrors.Newf(apperrors.KindEmptyCart, "Your cart is empty")
	}

	ids := make([]string, len(cart.Items))
	for i, it := range cart.Items {
		ids[i] = it.ProductID
	}
	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	order.Items = make([]models.OrderItem, 0, len(cart.Items))
	order.Subtotal = 0
	for _, line := range cart.Items {
		p, ok := products[line.ProductID]
		if !ok {
			return apperrors.Newf(apperrors.KindProductUnavailable, "Product %s is no longer available", line.ProductID)
		}
		if !p.Active {
			return apperrors.Newf(apperrors.KindProductUnavailable, "Product %s is no longer available", p.Name)
		}

		inv, err := s.inventory.ApplyMove(ctx, MoveInput{
			ProductID: p.ID,
			Type:      models.MoveReserve,
			Qty:       line.Qty,
			Note:      "Reserve for order " + order.ID,
			ActorID:   order.UserID,
			Ref:       models.MoveRef{Kind: models.RefKindOrder, ID: order.ID},
		})
		if apperrors.Is(err, apperrors.KindInsufficientAvailable) {
			return apperrors.New(apperrors.StatusFor(apperrors.KindInsufficientAvailable),
				apperrors.KindInsufficientAvailable, "Out of stock: "+p.Name, err)
		}
		if err != nil {
			return err
		}
		fx.moved(models.MoveReserve, line.Qty, inv)

		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Qty:       line.Qty,
			Image:     p.FirstImage(),
		})
		order.Subtotal += p.Price * int64(line.Qty)
	}

	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		res, err := s.discounts.ValidateAndCalc(ctx, ValidateInput{
			Code: code, Kind: models.TargetOrder, OrderAmount: order.Subtotal, UserID: order.UserID,
		})
		if err != nil {
			return err
		}
		if !res.Valid {
			return Rejection(res)
		}
		if err := s.discounts.Commit(ctx, res, order.UserID, order.ID); err != nil {
			return err
		}
		order.DiscountCode, order.DiscountAmount = res.Code, res.Discount
		fx.codes = append(fx.codes, appliedCode{code: res.Code, target: models.TargetOrder, amount: res.Discount})
	}

	order.ShippingFee = req.ShippingFee
	if code := strings.TrimSpace(req.FreeShipCode); code != "" {
		res, err := s.discounts.ValidateAndCalc(ctx, ValidateInput{
			Code: code, Kind: models.TargetShipping, OrderAmount: order.Subtotal, ShippingAmount: req.ShippingFee, UserID: order.UserID,
		})
		if err != nil {
			return err
		}
		if !res.Valid {
			return Rejection(res)
		}
		if err := s.discounts.Commit(ctx, res, order.UserID, order.ID); err != nil {
			return err
		}
		order.FreeShipCode = res.Code
		order.ShippingFee = max(0, req.ShippingFee-res.Discount)
		fx.codes = append(fx.codes, appliedCode{code: res.Code, target: models.TargetShipping, amount: res.Discount})
	}

	if err := s.store.Orders.Create(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	cart.Items = []models.CartItem{}
	if err := s.store.Carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if order.PaymentMethod == models.PaymentMethodCOD {
		_, err = s.ensureShipment(ctx, order)
		return err
	}
	payment := &models.Payment{
		ID:       uuid.NewString(),
		OrderID:  order.ID,
		Provider: models.ProviderMock,
		Amount:   order.Payable(),
		Status:   models.PaymentPending,
	}
	if err := s.store.Payments.Create(ctx, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ensureShipment creates the order's shipment unless it already has one.
func (s *OrderService) ensureShipment(ctx context.Context, o *models.Order) (*models.Shipment, error) {
	existing, err := s.store.Shipments.FindByOrderID(ctx, o.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load shipment: %w", err)
	}

	sh := &models.Shipment{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Carrier: models.CarrierInHouse,
		Code:    ShipmentCode(o.ID, s.now()),
		Fee:     o.ShippingFee,
		Status:  models.ShipmentStatusCreated,
	}
	err = s.store.Shipments.Create(ctx, sh)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.store.Shipments.FindByOrderID(ctx, o.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	return sh, nil
}

// advance applies action to o inside the transaction carried by ctx.
func (s *OrderService) advance(ctx context.Context, o *models.Order, action OrderAction, actorID string, fx *afterCommit) error {
	t, err := action.next(o.Status)
	if err != nil {
		return err
	}
	if t.effect != nil {
		if err := t.effect(ctx, s, o, actorID, fx); err != nil {
			return err
		}
	}

	err = s.store.Orders.UpdateStatus(ctx, o.ID, o.Status, t.to)
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperrors.Conflict("Order %s changed concurrently, please retry", o.ID)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	o.Status = t.to
	return nil
}

// Transition runs one admin action in its own transaction.
func (s *OrderService) Transition(ctx context.Context, orderID string, action OrderAction, actorID string) (*models.Order, error) {
	var (
		order *models.Order
		from  models.OrderStatus
	)
	fx := &afterCommit{}
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		*fx = afterCommit{}
		o, err := s.store.Orders.FindByID(ctx, orderID)
		if err != nil {
			return notFound(err, "Order", orderID)
		}
		from = o.Status
		if err := s.advance(ctx, o, action, actorID, fx); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		logger.RequestIDField(ctx),
		zap.String("order_id", order.ID),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("by", actorID),
	)
	switch action {
	case ActionFulfill:
		recordCount(s.metrics, awspkg.MetricOrdersFulfilled, nil)
	case ActionCancel:
		recordCount(s.metrics, awspkg.MetricOrdersCancelled, nil)
	}
	s.flush(ctx, order, fx)
	s.events.OrderStatusChanged(ctx, order, from)
	return order, nil
}

func (s *OrderService) Confirm(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, ActionConfirm, actorID)
}

func (s *OrderService) Fulfill(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, ActionFulfill, actorID)
}

func (s *OrderService) Cancel(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, ActionCancel, actorID)
}

func (s *OrderService) MarkDelivered(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, ActionDeliver, actorID)
}

func (s *OrderService) MarkFailed(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, ActionFail, actorID)
}

func (s *OrderService) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.store.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "Order", orderID)
	}
	return o, nil
}

// GetForUser returns an order visible to its owner or an admin.
func (s *OrderService) GetForUser(ctx context.Context, orderID, userID string, isAdmin bool) (*models.OrderView, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, apperrors.Forbidden("You do not have access to this order")
	}
	view := models.NewOrderView(o)
	return &view, nil
}

// ListMine returns the user's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]models.OrderView, error) {
	orders, err := s.store.Orders.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]models.OrderView, len(orders))
	for i := range orders {
		out[i] = models.NewOrderView(&orders[i])
	}
	return out, nil
}

func (s *OrderService) AdminList(ctx context.Context, f models.OrderFilter) ([]models.OrderSummary, models.PageMeta, error) {
	f.Page, f.Limit = repository.NormalizePage(f.Page, f.Limit, 20, 100)
	orders, total, err := s.store.Orders.FindAll(ctx, f)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("list orders: %w", err)
	}
	out := make([]models.OrderSummary, len(orders))
	for i := range orders {
		out[i] = models.NewOrderSummary(&orders[i])
	}
	return out, models.NewPageMeta(f.Page, f.Limit, total), nil
}

// AdminDetail returns the order with its payments and shipment.
func (s *OrderService) AdminDetail(ctx context.Context, orderID string) (*models.OrderDetail, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	detail := &models.OrderDetail{
		OrderView:  models.NewOrderView(o),
		ShippingTo: o.ShipInfo,
		Payments:   payments,
	}
	sh, err := s.store.Shipments.FindByOrderID(ctx, orderID)
	switch {
	case err == nil:
		detail.Shipment = sh
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	return detail, nil
}
