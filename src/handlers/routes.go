package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/username/dmtrade/backend/src/utils"
	"golang.org/x/time/rate"
)

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	Limiter        *rate.Limiter // nil disables rate limiting
}

// NewRouter wires every handler under /api.
func NewRouter(cfg RouterConfig, accountH *AccountHandler, managerH *PortfolioManagerHandler, txH *TransactionHandler, portfolioH *PortfolioHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", AccountIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.Limiter != nil {
		r.Use(RateLimitMiddleware(cfg.Limiter))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, http.StatusOK, map[string]string{"message": "dmtrade backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", accountH.HandleCreateAccount)

		r.Group(func(r chi.Router) {
			r.Use(accountH.AccountMiddleware)

			r.Get("/accounts/me", accountH.HandleGetAccount)
			r.Delete("/accounts/me", accountH.HandleDeleteAccount)

			r.Get("/portfolios", managerH.ListPortfolios)
			r.Post("/portfolios", managerH.CreatePortfolio)
			r.Route("/portfolios/{id}", func(r chi.Router) {
				r.Get("/", managerH.GetPortfolio)
				r.Patch("/", managerH.RenamePortfolio)
				r.Delete("/", managerH.DeletePortfolio)

				r.Post("/bids", txH.HandleRecordBid)
				r.Post("/asks", txH.HandleRecordAsk)
				r.Get("/trades", txH.HandleGetTrades)
				r.Get("/shares", txH.HandleGetShares)
				r.Get("/symbols", txH.HandleGetSymbols)

				r.Get("/value", portfolioH.HandleGetValue)
				r.Get("/revenue", portfolioH.HandleGetRevenue)
				r.Get("/history", portfolioH.HandleGetValueHistory)
			})

			r.Get("/holdings/{symbol}", portfolioH.HandleGetHoldings)
			r.Get("/market/{symbol}", portfolioH.HandleGetQuote)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	return r
}
