package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

type BidPlacer interface {
	PlaceBid(ctx context.Context, itemID, bidderID string, amount decimal.Decimal) (*domain.Bid, error)
	LeadingBid(ctx context.Context, itemID string) (*domain.Bid, error)
	ListBidsForItem(ctx context.Context, itemID string) ([]*domain.Bid, error)
	ListUserBids(ctx context.Context, userID string) ([]*domain.UserBid, error)
}

type BidHandler struct {
	bids BidPlacer
	log  logger.Logger
}

func NewBidHandler(bids BidPlacer, log logger.Logger) *BidHandler {
	return &BidHandler{bids: bids, log: log}
}

// Register mounts the bid routes. placeBid is wrapped separately so rate
// limiting only applies to writes.
func (h *BidHandler) Register(r *mux.Router, placeBidMiddleware ...mux.MiddlewareFunc) {
	var placeBid http.Handler = http.HandlerFunc(h.PlaceBid)
	for i := len(placeBidMiddleware) - 1; i >= 0; i-- {
		placeBid = placeBidMiddleware[i](placeBid)
	}

	r.Handle("/items/{id}/bids", placeBid).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}/bids", h.ListBidsForItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}/leading-bid", h.LeadingBid).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/bids", h.ListUserBids).Methods(http.MethodGet)
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type leadingBidResponse struct {
	ItemID     string      `json:"item_id"`
	LeadingBid *domain.Bid `json:"leading_bid"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *BidHandler) fail(w http.ResponseWriter, handler string, err error) {
	status := StatusForError(err)
	logError(h.log, handler, status, err)
	writeJSON(w, status, errorResponse{Error: publicMessage(status, err)})
}

func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID := userFromHeader(r)
	if bidderID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + UserIDHeader + " header"})
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("PlaceBid: binding error", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), mux.Vars(r)["id"], bidderID, req.Amount)
	if err != nil {
		h.fail(w, "PlaceBid", err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (h *BidHandler) ListBidsForItem(w http.ResponseWriter, r *http.Request) {
	bids, err := h.bids.ListBidsForItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "ListBidsForItem", err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *BidHandler) LeadingBid(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	bid, err := h.bids.LeadingBid(r.Context(), itemID)
	if err != nil {
		h.fail(w, "LeadingBid", err)
		return
	}
	writeJSON(w, http.StatusOK, leadingBidResponse{ItemID: itemID, LeadingBid: bid})
}

func (h *BidHandler) ListUserBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.bids.ListUserBids(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "ListUserBids", err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}
