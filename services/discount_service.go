package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
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

// ValidateInput asks whether code can discount the given amounts for a user.
type ValidateInput struct {
	Code           string
	Kind           models.DiscountTarget
	OrderAmount    int64
	ShippingAmount int64
	UserID         string
}

// DiscountService evaluates vouchers. Validation never mutates state; the
// order flow commits a valid result with Commit inside its transaction.
type DiscountService struct {
	store   *repository.Store
	metrics awspkg.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewDiscountService(store *repository.Store, metrics awspkg.Metrics, logger *zap.Logger) *DiscountService {
	return &DiscountService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCode upper-cases and trims a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// evaluation is the state shared by the eligibility guards.
type evaluation struct {
	in      ValidateInput
	voucher *models.Discount
	now     time.Time
	base    int64
}

// guard returns a rejection, or an infrastructure error.
type guard struct {
	name  string
	check func(ctx context.Context, s *DiscountService, ev *evaluation) (*apperrors.Error, error)
}

// voucherGuards run in this order; the first rejection wins.
var voucherGuards = []guard{
	{"active", checkActive},
	{"target", checkTarget},
	{"per_user_limit", checkUserLimit},
	{"minimum", checkMinimum},
	{"amount", checkAmount},
}

func checkActive(_ context.Context, _ *DiscountService, ev *evaluation) (*apperrors.Error, error) {
	v := ev.voucher
	switch {
	case !v.Active:
		return apperrors.Newf(apperrors.KindInactive, "Voucher %s is inactive", v.Code), nil
	case v.StartAt != nil && ev.now.Before(*v.StartAt):
		return apperrors.Newf(apperrors.KindInactive, "Voucher %s is not valid yet", v.Code), nil
	case v.EndAt != nil && ev.now.After(*v.EndAt):
		return apperrors.Newf(apperrors.KindInactive, "Voucher %s has expired", v.Code), nil
	case v.Exhausted():
		return apperrors.Newf(apperrors.KindInactive, "Voucher %s has reached its usage limit", v.Code), nil
	}
	return nil, nil
}

func checkTarget(_ context.Context, _ *DiscountService, ev *evaluation) (*apperrors.Error, error) {
	if ev.voucher.Target != ev.in.Kind {
		return apperrors.Newf(apperrors.KindTargetMismatch,
			"Voucher %s applies to %s, not %s", ev.voucher.Code, ev.voucher.Target, ev.in.Kind), nil
	}
	return nil, nil
}

func checkUserLimit(ctx context.Context, s *DiscountService, ev *evaluation) (*apperrors.Error, error) {
	if ev.voucher.PerUserLimit <= 0 || ev.in.UserID == "" {
		return nil, nil
	}
	used, err := s.store.DiscountUsages.CountByUser(ctx, ev.voucher.Code, ev.in.UserID)
	if err != nil {
		return nil, fmt.Errorf("count voucher usage: %w", err)
	}
	if used >= int64(ev.voucher.PerUserLimit) {
		return apperrors.Newf(apperrors.KindUserLimitExceeded,
			"You have already used voucher %s %d time(s)", ev.voucher.Code, used), nil
	}
	return nil, nil
}

func checkMinimum(_ context.Context, _ *DiscountService, ev *evaluation) (*apperrors.Error, error) {
	v := ev.voucher
	if v.Target == models.TargetOrder && ev.in.OrderAmount < v.MinOrder {
		return apperrors.Newf(apperrors.KindBelowMinimum,
			"Voucher %s requires an order of at least %s", v.Code, FormatVND(v.MinOrder)), nil
	}
	return nil, nil
}

func checkAmount(_ context.Context, _ *DiscountService, ev *evaluation) (*apperrors.Error, error) {
	ev.base = ev.in.OrderAmount
	if ev.voucher.Target == models.TargetShipping {
		ev.base = ev.in.ShippingAmount
	}
	if ev.base <= 0 {
		return apperrors.Newf(apperrors.KindInvalidAmount, "Nothing to discount for voucher %s", ev.voucher.Code), nil
	}
	return nil, nil
}

// ComputeDiscount prices voucher v against base. The result is always in [0, base].
func ComputeDiscount(v *models.Discount, base int64) int64 {
	if base <= 0 {
		return 0
	}

	var amount int64
	switch v.Type {
	case models.DiscountPercent:
		if v.Value == math.Trunc(v.Value) {
			amount = base * int64(v.Value) / 100
		} else {
			amount = int64(math.Floor(float64(base) * v.Value / 100))
		}
		if v.MaxDiscount != nil && amount > *v.MaxDiscount {
			amount = *v.MaxDiscount
		}
	case models.DiscountFixed:
		amount = int64(math.Floor(v.Value))
	}

	return min(max(amount, 0), base)
}

// ValidateAndCalc evaluates in. Rejections come back as an invalid result;
// the error is reserved for infrastructure faults.
func (s *DiscountService) ValidateAndCalc(ctx context.Context, in ValidateInput) (*models.DiscountResult, error) {
	in.Code = NormalizeCode(in.Code)
	if in.Kind == "" {
		in.Kind = models.TargetOrder
	}
	res := &models.DiscountResult{Code: in.Code, Target: in.Kind}

	reject := func(e *apperrors.Error) (*models.DiscountResult, error) {
		res.Reason, res.Message = string(e.Kind), e.Message
		recordCount(s.metrics, awspkg.MetricDiscountRejected, map[string]string{"Reason": res.Reason})
		return res, nil
	}

	if in.Code == "" {
		return reject(apperrors.InvalidInput("Voucher code is required"))
	}

	voucher, err := s.store.Discounts.FindByCode(ctx, in.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return reject(apperrors.NotFound("Voucher %s does not exist", in.Code))
	}
	if err != nil {
		return nil, fmt.Errorf("find voucher %s: %w", in.Code, err)
	}

	ev := &evaluation{in: in, voucher: voucher, now: s.now()}
	for _, g := range voucherGuards {
		rejection, err := g.check(ctx, s, ev)
		if err != nil {
			return nil, fmt.Errorf("voucher guard %s: %w", g.name, err)
		}
		if rejection != nil {
			return reject(rejection)
		}
	}

	res.Valid = true
	res.Discount = ComputeDiscount(voucher, ev.base)
	res.Target = voucher.Target
	res.Voucher = voucher
	return res, nil
}

// Rejection converts an invalid result into the error the order flow aborts with.
func Rejection(res *models.DiscountResult) error {
	if res == nil || res.Valid {
		return nil
	}
	kind := apperrors.Kind(res.Reason)
	return apperrors.New(apperrors.StatusFor(kind), kind, res.Message, nil)
}

// Commit records one use of a validated voucher. It must run inside the
// order transaction so the counter, the usage row and the order commit together.
func (s *DiscountService) Commit(ctx context.Context, res *models.DiscountResult, userID, orderID string) error {
	v := res.Voucher
	err := s.store.DiscountUsages.Create(ctx, &models.DiscountUsage{
		ID:      uuid.NewString(),
		Code:    v.Code,
		UserID:  userID,
		OrderID: orderID,
		Amount:  res.Discount,
	})
	if err != nil {
		return fmt.Errorf("record voucher usage %s: %w", v.Code, err)
	}

	err = s.store.Discounts.IncrementUsed(ctx, v.ID)
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperrors.Newf(apperrors.KindUsageLimitExceeded, "Voucher %s has reached its usage limit", v.Code)
	}
	if err != nil {
		return fmt.Errorf("increment voucher usage %s: %w", v.Code, err)
	}
	return nil
}

// AvailableForUser lists the public vouchers the user can still apply, best
// preview first. Order vouchers under their minimum are kept with a zero
// preview and the missing amount.
func (s *DiscountService) AvailableForUser(ctx context.Context, userID string, orderAmount, shippingAmount int64) ([]models.VoucherSuggestion, error) {
	vouchers, err := s.store.Discounts.ListPublicActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public vouchers: %w", err)
	}

	now := s.now()
	out := make([]models.VoucherSuggestion, 0, len(vouchers))
	for i := range vouchers {
		v := &vouchers[i]
		if !v.InWindow(now) || v.Exhausted() {
			continue
		}
		if v.PerUserLimit > 0 && userID != "" {
			used, err := s.store.DiscountUsages.CountByUser(ctx, v.Code, userID)
			if err != nil {
				return nil, fmt.Errorf("count voucher usage: %w", err)
			}
			if used >= int64(v.PerUserLimit) {
				continue
			}
		}

		sug := models.VoucherSuggestion{
			Code:     v.Code,
			Type:     v.Type,
			Target:   v.Target,
			Label:    VoucherLabel(v),
			MinOrder: v.MinOrder,
		}
		switch {
		case v.Target == models.TargetShipping:
			sug.Preview = ComputeDiscount(v, shippingAmount)
		case orderAmount < v.MinOrder:
			sug.Missing = v.MinOrder - orderAmount
		default:
			sug.Preview = ComputeDiscount(v, orderAmount)
		}
		out = append(out, sug)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Preview != out[j].Preview {
			return out[i].Preview > out[j].Preview
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// Quote prices a subtotal and shipping fee with optional codes. Invalid codes
// contribute nothing and report their reason.
func (s *DiscountService) Quote(ctx context.Context, userID string, req models.QuoteRequest) (*models.Quote, error) {
	q := &models.Quote{Subtotal: req.Subtotal, ShippingFee: req.ShippingFee}

	if strings.TrimSpace(req.DiscountCode) != "" {
		res, err := s.ValidateAndCalc(ctx, ValidateInput{
			Code: req.DiscountCode, Kind: models.TargetOrder, OrderAmount: req.Subtotal, UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		if res.Valid {
			q.OrderDiscount = res.Discount
		} else {
			q.OrderError = res.Message
		}
	}
	if strings.TrimSpace(req.FreeShipCode) != "" {
		res, err := s.ValidateAndCalc(ctx, ValidateInput{
			Code: req.FreeShipCode, Kind: models.TargetShipping, OrderAmount: req.Subtotal, ShippingAmount: req.ShippingFee, UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		if res.Valid {
			q.ShipDiscount = res.Discount
		} else {
			q.ShipError = res.Message
		}
	}

	q.Total = max(0, q.Subtotal-q.OrderDiscount+max(0, q.ShippingFee-q.ShipDiscount))
	return q, nil
}

// Create adds a voucher from the admin payload.
func (s *DiscountService) Create(ctx context.Context, req *models.CreateDiscountRequest) (*models.Discount, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.Type == models.DiscountPercent && req.Value > 100 {
		return nil, apperrors.InvalidInput("Percentage discount cannot exceed 100")
	}
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return nil, apperrors.InvalidInput("endAt must not be before startAt")
	}
	target := req.Target
	if target == "" {
		target = models.TargetOrder
	}

	d := &models.Discount{
		ID:           uuid.NewString(),
		Code:         NormalizeCode(req.Code),
		Type:         req.Type,
		Value:        req.Value,
		MaxDiscount:  req.MaxDiscount,
		MinOrder:     req.MinOrder,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		UsageLimit:   req.UsageLimit,
		Target:       target,
		IsPublic:     req.IsPublic,
		PerUserLimit: req.PerUserLimit,
		Active:       true,
	}
	if err := s.store.Discounts.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("Voucher code %s already exists", d.Code)
		}
		return nil, fmt.Errorf("create voucher: %w", err)
	}

	s.logger.Info("Voucher created", logger.RequestIDField(ctx), zap.String("code", d.Code), zap.String("type", string(d.Type)), zap.String("target", string(d.Target)))
	return d, nil
}

func (s *DiscountService) List(ctx context.Context, page, limit int) ([]models.Discount, models.PageMeta, error) {
	page, limit = repository.NormalizePage(page, limit, 10, 100)
	items, total, err := s.store.Discounts.List(ctx, page, limit)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("list vouchers: %w", err)
	}
	return items, models.NewPageMeta(page, limit, total), nil
}

func (s *DiscountService) Deactivate(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if err := s.store.Discounts.Deactivate(ctx, code); err != nil {
		return notFound(err, "Voucher", code)
	}
	s.logger.Info("Voucher deactivated", logger.RequestIDField(ctx), zap.String("code", code))
	return nil
}

// VoucherLabel is the short human readable description shown to shoppers.
func VoucherLabel(v *models.Discount) string {
	var label string
	switch v.Type {
	case models.DiscountPercent:
		label = "Giảm " + strconv.FormatFloat(v.Value, 'f', -1, 64) + "%"
		if v.MaxDiscount != nil {
			label += " tối đa " + FormatVND(*v.MaxDiscount)
		}
	default:
		label = "Giảm " + FormatVND(int64(v.Value))
	}

	if v.Target == models.TargetShipping {
		if v.Type == models.DiscountFixed {
			return "Miễn phí vận chuyển tới " + FormatVND(int64(v.Value))
		}
		return label + " phí vận chuyển"
	}
	if v.MinOrder > 0 {
		label += " cho đơn từ " + FormatVND(v.MinOrder)
	}
	return label
}

// FormatVND renders an amount the way the storefront does: 30000 -> "30.000đ".
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "đ"
}
