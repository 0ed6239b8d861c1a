package bootstrap

import (
	"net/http"

	"github.com/gorilla/mux"

	"silent-auction/internal/api/handlers"
	"silent-auction/internal/api/middleware"
	"silent-auction/internal/config"
	"silent-auction/pkg/logger"
)

// NewBiddingRouter builds the mux router of the bidding API. feed serves the
// live notification socket and may be nil.
func NewBiddingRouter(cfg *config.Config, bids handlers.BidPlacer, feed http.Handler, log logger.Logger) *mux.Router {
	limiter := middleware.NewRateLimiter(cfg.RateLimit.BidsPerSecond, cfg.RateLimit.Burst, log)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORSWithLogging(log))

	api := router.PathPrefix("/api/v1").Subrouter()
	handlers.NewBidHandler(bids, log).Register(api, limiter.Middleware)
	if feed != nil {
		router.Handle("/ws/notifications", feed).Methods(http.MethodGet)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
