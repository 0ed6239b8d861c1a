package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
	"silent-auction/internal/infrastructure/memory"
	"silent-auction/internal/services"
	"silent-auction/pkg/logger"
)

type server struct {
	echo   *echo.Echo
	router *mux.Router
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	dispatcher := services.NewDispatcher(store, services.DispatcherOptions{MaxAttempts: 1}, log)
	auctions := services.NewAuctionManager(store, services.NopStateCache{}, services.NopEventPublisher{}, dispatcher, log)
	bids := services.NewBidService(store, store, services.NopStateCache{}, services.NopEventPublisher{}, dispatcher, log)

	e := echo.New()
	api := e.Group("/api/v1")
	NewAuctionHandler(auctions, log).Register(api)
	NewNotificationHandler(services.NewNotificationService(store, log), log).Register(api)

	r := mux.NewRouter()
	NewBidHandler(bids, log).Register(r.PathPrefix("/api/v1").Subrouter())

	return &server{echo: e, router: r}
}

func do(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *server) createItem(t *testing.T, seller string, price string) *domain.Item {
	t.Helper()
	body := fmt.Sprintf(`{"title":"Vase","category":"Art","starting_price":%q,"deadline":%q}`,
		price, time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	rec := do(t, s.echo, http.MethodPost, "/api/v1/items", seller, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*domain.Item](t, rec)
}

func TestItemLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "seller", "100")
	require.Equal(t, domain.ItemActive, item.Status)
	require.Equal(t, "seller", item.SellerID)

	rec := do(t, s.echo, http.MethodGet, "/api/v1/items/"+item.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"active"`)
	require.Contains(t, rec.Body.String(), `"current_price":"100"`)

	rec = do(t, s.echo, http.MethodGet, "/api/v1/items?seller_id=seller", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*domain.Item](t, rec), 1)

	rec = do(t, s.echo, http.MethodGet, "/api/v1/items?seller_id=someone-else", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]*domain.Item](t, rec))

	rec = do(t, s.echo, http.MethodPost, "/api/v1/items/"+item.ID+"/cancel", "bob", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s.echo, http.MethodPost, "/api/v1/items/"+item.ID+"/close", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.ItemEnded, decode[*domain.Item](t, rec).Status)

	rec = do(t, s.echo, http.MethodGet, "/api/v1/items/missing", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateItemRequests(t *testing.T) {
	s := newServer(t)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name   string
		userID string
		body   string
		want   int
	}{
		{name: "no user", body: `{"title":"x","starting_price":"1","deadline":"` + future + `"}`, want: http.StatusUnauthorized},
		{name: "malformed json", userID: "seller", body: `{"title":`, want: http.StatusBadRequest},
		{name: "zero price", userID: "seller", body: `{"title":"x","starting_price":"0","deadline":"` + future + `"}`, want: http.StatusBadRequest},
		{name: "past deadline", userID: "seller", body: `{"title":"x","starting_price":"1","deadline":"2001-01-01T00:00:00Z"}`, want: http.StatusBadRequest},
		{name: "bad category", userID: "seller", body: `{"title":"x","category":"Boats","starting_price":"1","deadline":"` + future + `"}`, want: http.StatusBadRequest},
		{name: "numeric price", userID: "seller", body: `{"title":"x","starting_price":12.5,"deadline":"` + future + `"}`, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.echo, http.MethodPost, "/api/v1/items", tt.userID, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusCreated {
				require.NotEmpty(t, decode[errorResponse](t, rec).Error)
			}
		})
	}
}

func TestBiddingOverHTTP(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "seller", "100")
	bidsPath := "/api/v1/items/" + item.ID + "/bids"

	rec := do(t, s.router, http.MethodPost, bidsPath, "", `{"amount":"120"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s.router, http.MethodPost, bidsPath, "bob", `{"amount":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.router, http.MethodPost, bidsPath, "bob", `{"amount":"120"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bid := decode[*domain.Bid](t, rec)
	require.Equal(t, "bob", bid.BidderID)

	rec = do(t, s.router, http.MethodPost, bidsPath, "carol", `{"amount":"120"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Error, domain.ErrBidTooLow.Error())

	rec = do(t, s.router, http.MethodPost, bidsPath, "carol", `{"amount":130.5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s.router, http.MethodGet, "/api/v1/items/"+item.ID+"/leading-bid", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	leading := decode[leadingBidResponse](t, rec)
	require.Equal(t, item.ID, leading.ItemID)
	require.Equal(t, "carol", leading.LeadingBid.BidderID)
	require.True(t, leading.LeadingBid.Amount.Equal(decimal.RequireFromString("130.5")))

	rec = do(t, s.router, http.MethodGet, bidsPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*domain.Bid](t, rec), 2)

	rec = do(t, s.router, http.MethodGet, "/api/v1/users/bob/bids", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]*domain.UserBid](t, rec)
	require.Len(t, mine, 1)
	require.True(t, mine[0].UserMaxAmount.Equal(decimal.NewFromInt(120)))

	rec = do(t, s.router, http.MethodGet, "/api/v1/items/missing/leading-bid", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.echo, http.MethodPost, "/api/v1/items/"+item.ID+"/close", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s.router, http.MethodPost, bidsPath, "dave", `{"amount":"1000"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestNotificationsOverHTTP(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "seller", "10")
	bidsPath := "/api/v1/items/" + item.ID + "/bids"

	require.Equal(t, http.StatusCreated, do(t, s.router, http.MethodPost, bidsPath, "bob", `{"amount":"11"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, s.router, http.MethodPost, bidsPath, "carol", `{"amount":"12"}`).Code)

	rec := do(t, s.echo, http.MethodGet, "/api/v1/users/bob/notifications", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]*domain.Notification](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, domain.NotificationOutbid, list[0].Type)
	require.True(t, list[0].BidAmount.Equal(decimal.NewFromInt(12)))

	rec = do(t, s.echo, http.MethodGet, "/api/v1/users/seller/notifications/unread-count", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]int{"count": 2}, decode[map[string]int](t, rec))

	readPath := "/api/v1/notifications/" + list[0].ID + "/read"
	rec = do(t, s.echo, http.MethodPatch, readPath, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s.echo, http.MethodPatch, readPath, "mallory", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s.echo, http.MethodGet, "/api/v1/users/bob/notifications/unread-count", "", "")
	require.Equal(t, map[string]int{"count": 1}, decode[map[string]int](t, rec))

	rec = do(t, s.echo, http.MethodPatch, readPath, "bob", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s.echo, http.MethodPatch, readPath, "bob", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s.echo, http.MethodGet, "/api/v1/users/bob/notifications/unread-count", "", "")
	require.Equal(t, map[string]int{"count": 0}, decode[map[string]int](t, rec))

	rec = do(t, s.echo, http.MethodPatch, "/api/v1/notifications/missing/read", "bob", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type failingItems struct{ ItemService }

func (failingItems) GetItem(context.Context, string) (*domain.Item, error) {
	return nil, fmt.Errorf("get item: %w: %w", domain.ErrTransient, errors.New("dial tcp 10.0.0.5:3306: refused"))
}

func TestTransientFailuresHideDetail(t *testing.T) {
	e := echo.New()
	NewAuctionHandler(failingItems{}, logger.NewNop()).Register(e.Group(""))

	rec := do(t, e, http.MethodGet, "/items/x", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Equal(t, "temporarily unavailable, please retry", body.Error)
	require.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("item 1: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrAuctionClosed, http.StatusConflict},
		{domain.ErrBidTooLow, http.StatusConflict},
		{fmt.Errorf("op: %w: %w", domain.ErrTransient, errors.New("io")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusForError(tt.err), tt.err.Error())
	}
}
