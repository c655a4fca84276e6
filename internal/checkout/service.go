package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

const (
	MessageOrderPlaced = "Order placed successfully!"
	messageLoginNeeded = "You must be logged in to place an order."
	messageEmptyCart   = "cart is empty"
	unnamedItem        = "No Name"
)

var errCartClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer open")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service places the caller's active cart as an order.
type Service interface {
	PlaceOrder(ctx context.Context, userID int64) (*Result, error)
}

// Result is returned on a successful placement.
type Result struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	OrderID  int64     `json:"order_id"`
	Code     string    `json:"code"`
	PlacedAt time.Time `json:"placed_at"`
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Discard()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    logg,
		now:     now,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, userID int64) (*Result, error) {
	if userID <= 0 {
		s.metrics.IncPlacement(metrics.ResultFailure)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, messageLoginNeeded)
	}

	cart, err := s.repo.FindActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncPlacement(metrics.ResultEmptyCart)
			return nil, pkgerrors.New(pkgerrors.CodeValidation, messageEmptyCart)
		}
		s.metrics.IncPlacement(metrics.ResultFailure)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	count, err := s.repo.CountLines(ctx, cart.ID)
	if err != nil {
		s.metrics.IncPlacement(metrics.ResultFailure)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart lines")
	}
	if count == 0 {
		s.metrics.IncPlacement(metrics.ResultEmptyCart)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, messageEmptyCart)
	}

	placedAt := s.now()
	code := OrderCode(placedAt, userID)
	var placed payloads.OrderPlacedEvent

	started := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		event, err := s.place(ctx, repo, cart.ID, userID, code, placedAt)
		if err != nil {
			return err
		}
		placed = *event
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   cart.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Kind: "user"},
			Data:          placed,
			OccurredAt:    placedAt,
		})
	})
	s.metrics.ObservePlacement(time.Since(started))
	if err != nil {
		return nil, s.placementFailed(ctx, cart.ID, err)
	}

	s.metrics.IncPlacement(metrics.ResultSuccess)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    cart.ID,
		"order_code":  code,
		"user_id":     userID,
		"item_count":  placed.ItemCount,
		"total_cents": placed.TotalCents,
	})
	s.logg.Info(logCtx, "order.placed")
	return &Result{
		Success:  true,
		Message:  MessageOrderPlaced,
		OrderID:  cart.ID,
		Code:     code,
		PlacedAt: placedAt,
	}, nil
}

// place runs the locked stock check, the decrements and the status change.
func (s *service) place(ctx context.Context, repo Repository, cartID, userID int64, code string, placedAt time.Time) (*payloads.OrderPlacedEvent, error) {
	open, err := repo.LockCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, errCartClosed
	}
	lines, err := repo.PlacementLines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, messageEmptyCart)
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := repo.LockVariants(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		variant := variants[line.VariantID]
		if variant.Stock != nil && line.Quantity > *variant.Stock {
			return nil, insufficientStock(line, *variant.Stock)
		}
	}

	event := &payloads.OrderPlacedEvent{
		OrderID:  cartID,
		Code:     code,
		UserID:   userID,
		PlacedAt: placedAt,
		Lines:    make([]payloads.OrderLine, 0, len(lines)),
	}
	var total money.Cents
	for _, line := range lines {
		if variant := variants[line.VariantID]; variant.Stock != nil {
			affected, err := repo.DecrementStock(ctx, line.VariantID, line.Quantity)
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				return nil, insufficientStock(line, *variant.Stock)
			}
		}
		price := money.Cents(line.UnitPriceCents)
		total += money.Net(price, money.Ptr(line.UnitDiscountCents)).Times(line.Quantity)
		event.ItemCount += line.Quantity
		event.Lines = append(event.Lines, payloads.OrderLine{
			LineID:            line.LineID,
			VariantID:         line.VariantID,
			Quantity:          line.Quantity,
			UnitPriceCents:    line.UnitPriceCents,
			UnitDiscountCents: line.UnitDiscountCents,
		})
	}
	event.TotalCents = int64(total)

	affected, err := repo.MarkPlaced(ctx, cartID, code, placedAt)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errCartClosed
	}
	return event, nil
}

func (s *service) placementFailed(ctx context.Context, cartID int64, err error) error {
	logCtx := s.logg.WithCartID(ctx, cartID)
	if pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		s.metrics.IncPlacement(metrics.ResultInsufficientStock)
		s.logg.Warn(logCtx, "order.rejected")
		return err
	}
	s.metrics.IncPlacement(metrics.ResultFailure)
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	s.logg.Error(logCtx, "order.failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
}

func insufficientStock(line PlacementLine, available int) error {
	name := unnamedItem
	if line.ItemName != nil && *line.ItemName != "" {
		name = *line.ItemName
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("insufficient stock for %s", name)).
		WithDetails(map[string]any{
			"item":      name,
			"requested": line.Quantity,
			"available": available,
		})
}

// OrderCode derives the public order code from the placement time and user.
func OrderCode(at time.Time, userID int64) string {
	return fmt.Sprintf("ORD-%d-%d", at.UnixMilli(), userID)
}
