package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

type seededOrders struct {
	conn    *gorm.DB
	svc     Service
	user    models.User
	variant models.Variant
	base    time.Time
}

func setupOrders(t *testing.T) *seededOrders {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	item := dbtest.SeedItem(t, conn, dbtest.ItemFixture{
		Name: "Denim Jacket", PriceCents: 5000, DiscountCents: dbtest.Int64Ptr(1000),
		Variants: []dbtest.VariantFixture{{Color: "Blue", Size: "L", Stock: dbtest.IntPtr(10)}},
	})
	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)
	return &seededOrders{
		conn:    conn,
		svc:     svc,
		user:    dbtest.SeedUser(t, conn, "ada", "ada@example.com"),
		variant: item.Variants[0],
		base:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *seededOrders) order(t *testing.T, userID int64, status enums.CartStatus, offset time.Duration, qty int) models.Cart {
	t.Helper()
	uid := userID
	cart := models.Cart{UserID: &uid, Status: status}
	if status == enums.CartStatusPlaced {
		at := s.base.Add(offset)
		code := "ORD-" + at.Format("150405")
		cart.PlacedAt = &at
		cart.Code = &code
	}
	require.NoError(t, s.conn.Create(&cart).Error)
	require.NoError(t, s.conn.Create(&models.LineItem{
		CartID:            cart.ID,
		VariantID:         s.variant.ID,
		Quantity:          qty,
		UnitPriceCents:    5000,
		UnitDiscountCents: dbtest.Int64Ptr(1000),
	}).Error)
	return cart
}

func TestListOrdersNewestFirstWithCursor(t *testing.T) {
	s := setupOrders(t)
	ctx := context.Background()
	oldest := s.order(t, s.user.ID, enums.CartStatusPlaced, 0, 1)
	middle := s.order(t, s.user.ID, enums.CartStatusPlaced, time.Hour, 2)
	newest := s.order(t, s.user.ID, enums.CartStatusPlaced, 2*time.Hour, 3)
	s.order(t, s.user.ID, enums.CartStatusCart, 0, 1)

	first, err := s.svc.List(ctx, s.user.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.Equal(t, newest.ID, first.Orders[0].OrderID)
	require.Equal(t, middle.ID, first.Orders[1].OrderID)
	require.Equal(t, 3, first.Orders[0].ItemCount)
	require.Equal(t, money.Cents(12000), first.Orders[0].Total)
	require.NotEmpty(t, first.NextCursor)

	second, err := s.svc.List(ctx, s.user.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Equal(t, oldest.ID, second.Orders[0].OrderID)
	require.Empty(t, second.NextCursor)
}

func TestListOrdersScopedToUser(t *testing.T) {
	s := setupOrders(t)
	other := dbtest.SeedUser(t, s.conn, "grace", "grace@example.com")
	s.order(t, other.ID, enums.CartStatusPlaced, 0, 1)

	list, err := s.svc.List(context.Background(), s.user.ID, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, list.Orders)
}

func TestListOrdersRejectsBadInput(t *testing.T) {
	s := setupOrders(t)

	_, err := s.svc.List(context.Background(), 0, pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = s.svc.List(context.Background(), s.user.ID, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOrderDetail(t *testing.T) {
	s := setupOrders(t)
	placed := s.order(t, s.user.ID, enums.CartStatusPlaced, 0, 2)

	detail, err := s.svc.Detail(context.Background(), s.user.ID, placed.ID)
	require.NoError(t, err)
	require.Equal(t, "ada", detail.UserName)
	require.Equal(t, enums.CartStatusPlaced, detail.Status)
	require.Len(t, detail.Lines, 1)

	line := detail.Lines[0]
	require.Equal(t, "Denim Jacket", line.ProductName)
	require.Equal(t, "Blue", line.Color)
	require.Equal(t, "L", line.Size)
	require.Equal(t, money.Cents(8000), line.LineTotal)
	require.Equal(t, 2, detail.ItemCount)
	require.Equal(t, money.Cents(8000), detail.Total)
}

func TestOrderDetailNotFound(t *testing.T) {
	s := setupOrders(t)
	open := s.order(t, s.user.ID, enums.CartStatusCart, 0, 1)
	other := dbtest.SeedUser(t, s.conn, "grace", "grace@example.com")
	foreign := s.order(t, other.ID, enums.CartStatusPlaced, 0, 1)

	for _, id := range []int64{open.ID, foreign.ID, 9999} {
		_, err := s.svc.Detail(context.Background(), s.user.ID, id)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "order %d", id)
	}
}
