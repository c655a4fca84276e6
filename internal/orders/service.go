package orders

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

// Service exposes a user's order history.
type Service interface {
	List(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error)
	Detail(ctx context.Context, userID, orderID int64) (*OrderDetail, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the order history service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		logg = logger.Discard()
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: []OrderSummary{}}
	rows, more := pagination.Page(rows, params.Limit)
	if more {
		if last := rows[len(rows)-1]; last.PlacedAt != nil {
			list.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: *last.PlacedAt, ID: last.ID})
		}
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	totals, err := s.repo.OrderTotals(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order totals")
	}
	for _, row := range rows {
		agg := totals[row.ID]
		list.Orders = append(list.Orders, OrderSummary{
			OrderID:   row.ID,
			Code:      row.Code,
			Status:    row.Status,
			PlacedAt:  row.PlacedAt,
			ItemCount: agg.ItemCount,
			Total:     money.Cents(agg.TotalCents),
		})
	}
	return list, nil
}

func (s *service) Detail(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.repo.FindOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": orderID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	name, err := s.repo.UserName(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order owner")
		}
		name = ""
	}
	if name == "" {
		name = guestName
	}

	rows, err := s.repo.OrderLines(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	detail := &OrderDetail{
		OrderID:  order.ID,
		Code:     order.Code,
		Status:   order.Status,
		PlacedAt: order.PlacedAt,
		UserName: name,
		Lines:    make([]OrderLineView, 0, len(rows)),
	}
	for _, row := range rows {
		price := money.Cents(row.UnitPriceCents)
		discount := money.Ptr(row.UnitDiscountCents)
		line := OrderLineView{
			LineID:       row.LineID,
			ItemID:       row.ItemID,
			VariantID:    row.VariantID,
			ProductName:  valueOr(row.ItemName, "No Name"),
			Color:        valueOr(row.Color, "N/A"),
			Size:         valueOr(row.Size, "N/A"),
			ImageURL:     catalog.FormatImageURL(row.Image),
			Quantity:     row.Quantity,
			UnitPrice:    price,
			UnitDiscount: discount,
			LineTotal:    money.Net(price, discount).Times(row.Quantity),
		}
		detail.Lines = append(detail.Lines, line)
		detail.ItemCount += line.Quantity
		detail.Total += line.LineTotal
	}
	return detail, nil
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
