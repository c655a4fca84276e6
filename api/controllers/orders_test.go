package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

type stubOrdersService struct {
	list       *orders.OrderList
	detail     *orders.OrderDetail
	err        error
	lastUser   int64
	lastOrder  int64
	lastParams pagination.Params
}

func (s *stubOrdersService) List(ctx context.Context, userID int64, params pagination.Params) (*orders.OrderList, error) {
	s.lastUser = userID
	s.lastParams = params
	return s.list, s.err
}

func (s *stubOrdersService) Detail(ctx context.Context, userID, orderID int64) (*orders.OrderDetail, error) {
	s.lastUser = userID
	s.lastOrder = orderID
	return s.detail, s.err
}

func TestOrdersListPassesPagination(t *testing.T) {
	svc := &stubOrdersService{list: &orders.OrderList{Orders: []orders.OrderSummary{{OrderID: 4}}, NextCursor: "abc"}}
	req := newJSONRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor=xyz", "")
	req = req.WithContext(middleware.WithUserID(req.Context(), 3))

	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastUser != 3 || svc.lastParams.Limit != 10 || svc.lastParams.Cursor != "xyz" {
		t.Fatalf("unexpected call user=%d params=%+v", svc.lastUser, svc.lastParams)
	}
	var list orders.OrderList
	decodeData(t, resp, &list)
	if len(list.Orders) != 1 || list.NextCursor != "abc" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestOrdersListRejectsOversizedLimit(t *testing.T) {
	req := newJSONRequest(http.MethodGet, "/api/v1/orders?limit=1000", "")
	req = req.WithContext(middleware.WithUserID(req.Context(), 3))

	resp := httptest.NewRecorder()
	OrdersList(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrdersDetailNotFound(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	req := newJSONRequest(http.MethodGet, "/api/v1/orders/12", "")
	req = withURLParams(req.WithContext(middleware.WithUserID(req.Context(), 3)), map[string]string{"orderId": "12"})

	resp := httptest.NewRecorder()
	OrdersDetail(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if svc.lastOrder != 12 || svc.lastUser != 3 {
		t.Fatalf("unexpected call user=%d order=%d", svc.lastUser, svc.lastOrder)
	}
}
