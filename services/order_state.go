package services

import (
	"context"
	"strings"

	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
)

// OrderAction names a transition of the order state machine.
type OrderAction string

const (
	ActionConfirm OrderAction = "confirm"
	ActionFulfill OrderAction = "fulfill"
	ActionCancel  OrderAction = "cancel"
	ActionDeliver OrderAction = "deliver"
	ActionFail    OrderAction = "fail"
	ActionCapture OrderAction = "capture"
)

// sideEffect runs inside the transition's transaction, before the status write.
type sideEffect func(ctx context.Context, s *OrderService, o *models.Order, actorID string, fx *afterCommit) error

type transition struct {
	from   []models.OrderStatus
	to     models.OrderStatus
	effect sideEffect
}

// orderTransitions is the only place that knows which status may follow which.
var orderTransitions = map[OrderAction]transition{
	ActionConfirm: {from: []models.OrderStatus{models.OrderPending}, to: models.OrderConfirmed},
	ActionFulfill: {from: []models.OrderStatus{models.OrderPending, models.OrderConfirmed}, to: models.OrderShipping, effect: fulfillEffect},
	ActionCancel:  {from: []models.OrderStatus{models.OrderPending, models.OrderConfirmed}, to: models.OrderCancelled, effect: cancelEffect},
	ActionDeliver: {from: []models.OrderStatus{models.OrderShipping}, to: models.OrderDelivered},
	ActionFail:    {from: []models.OrderStatus{models.OrderShipping}, to: models.OrderFailed},
	ActionCapture: {from: []models.OrderStatus{models.OrderPending}, to: models.OrderConfirmed, effect: shipmentEffect},
}

// next returns the status action leads to from current, or an
// invalid_transition error naming both states.
func (a OrderAction) next(current models.OrderStatus) (transition, error) {
	t, ok := orderTransitions[a]
	if !ok {
		return transition{}, apperrors.InvalidInput("Unknown order action %q", a)
	}
	for _, s := range t.from {
		if s == current {
			return t, nil
		}
	}
	allowed := make([]string, len(t.from))
	for i, s := range t.from {
		allowed[i] = string(s)
	}
	return transition{}, apperrors.Newf(apperrors.KindInvalidTransition,
		"Cannot %s an order in status %s (requires %s)", a, current, strings.Join(allowed, " or "))
}

// CanTransition reports whether action is allowed from current.
func CanTransition(action OrderAction, current models.OrderStatus) bool {
	_, err := action.next(current)
	return err == nil
}

// fulfillEffect converts every reservation into a real deduction. The release
// goes first so reserved never exceeds stock between the two movements.
func fulfillEffect(ctx context.Context, s *OrderService, o *models.Order, actorID string, fx *afterCommit) error {
	for _, it := range o.Items {
		for _, t := range []models.MovementType{models.MoveRelease, models.MoveIssue} {
			inv, err := s.inventory.ApplyMove(ctx, MoveInput{
				ProductID: it.ProductID,
				Type:      t,
				Qty:       it.Qty,
				Note:      "Fulfill order " + o.ID,
				ActorID:   actorID,
				Ref:       models.MoveRef{Kind: models.RefKindOrder, ID: o.ID},
			})
			if err != nil {
				return err
			}
			fx.moved(t, it.Qty, inv)
		}
	}
	return shipmentEffect(ctx, s, o, actorID, fx)
}

// cancelEffect gives every reservation back.
func cancelEffect(ctx context.Context, s *OrderService, o *models.Order, actorID string, fx *afterCommit) error {
	for _, it := range o.Items {
		inv, err := s.inventory.ApplyMove(ctx, MoveInput{
			ProductID: it.ProductID,
			Type:      models.MoveRelease,
			Qty:       it.Qty,
			Note:      "Cancel order " + o.ID,
			ActorID:   actorID,
			Ref:       models.MoveRef{Kind: models.RefKindOrder, ID: o.ID},
		})
		if err != nil {
			return err
		}
		fx.moved(models.MoveRelease, it.Qty, inv)
	}
	return nil
}

func shipmentEffect(ctx context.Context, s *OrderService, o *models.Order, _ string, _ *afterCommit) error {
	_, err := s.ensureShipment(ctx, o)
	return err
}
