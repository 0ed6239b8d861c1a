package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
	"silent-auction/internal/services"
	"silent-auction/pkg/logger"
)

type ItemService interface {
	CreateItem(ctx context.Context, params services.CreateItemParams) (*domain.Item, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	ListActiveItems(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error)
	CloseAuction(ctx context.Context, itemID string) (*domain.Item, error)
	CancelAuction(ctx context.Context, itemID, requesterID string) (*domain.Item, error)
}

type AuctionHandler struct {
	items ItemService
	log   logger.Logger
}

func NewAuctionHandler(items ItemService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{items: items, log: log}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/items", h.CreateItem)
	g.GET("/items", h.ListActiveItems)
	g.GET("/items/:id", h.GetItem)
	g.POST("/items/:id/close", h.CloseAuction)
	g.POST("/items/:id/cancel", h.CancelAuction)
}

type createItemRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      domain.Category `json:"category"`
	ImageURL      string          `json:"image_url"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	Deadline      time.Time       `json:"deadline"`
}

// fail writes err as a JSON error body with the mapped status.
func (h *AuctionHandler) fail(c echo.Context, handler string, err error) error {
	status := StatusForError(err)
	logError(h.log, handler, status, err)
	return c.JSON(status, errorResponse{Error: publicMessage(status, err)})
}

func userFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "missing " + UserIDHeader + " header"})
}

func (h *AuctionHandler) CreateItem(c echo.Context) error {
	sellerID := userFromHeader(c.Request())
	if sellerID == "" {
		return unauthorized(c)
	}

	var req createItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
	}

	item, err := h.items.CreateItem(c.Request().Context(), services.CreateItemParams{
		SellerID:      sellerID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		StartingPrice: req.StartingPrice,
		Deadline:      req.Deadline,
	})
	if err != nil {
		return h.fail(c, "CreateItem", err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *AuctionHandler) ListActiveItems(c echo.Context) error {
	filter := domain.ItemFilter{SellerID: c.QueryParam("seller_id")}

	items, err := h.items.ListActiveItems(c.Request().Context(), filter)
	if err != nil {
		return h.fail(c, "ListActiveItems", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AuctionHandler) GetItem(c echo.Context) error {
	item, err := h.items.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "GetItem", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	item, err := h.items.CloseAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "CloseAuction", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	requesterID := userFromHeader(c.Request())
	if requesterID == "" {
		return unauthorized(c)
	}

	item, err := h.items.CancelAuction(c.Request().Context(), c.Param("id"), requesterID)
	if err != nil {
		return h.fail(c, "CancelAuction", err)
	}
	return c.JSON(http.StatusOK, item)
}
