/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires the chi router: middleware stack and one route group per table.
  Handlers are thin; every rule lives in the store.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the shop frontend

ROUTE GROUPS:
  /api/consumers/*            Consumers, their history and admin roles
  /api/products/*             Products and stock history
  /api/departments/*          Departments and statistics
  /api/purchases/*            Purchases (PUT revokes)
  /api/deposits/*             Deposits
  /api/payoffs/*              Payoffs (PUT revokes)
  /api/departmentpurchases/*  Restocking
  /api/banks/*                Bank
  /api/pricecategories        Markup tiers
  /api/workactivities/*       Workactivities
  /api/participations         Worked minutes
  /api/activities/*           Activities
  /api/activityfeedbacks      Activity sign-ups
  /api/logs                   Audit log
  /api/health                 Database ping

SECURITY NOTE:
  No authentication middleware. Token issuance happens in front of this
  service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/campus-shop/shop"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	s := h.Store

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/consumers", func(r chi.Router) {
			r.Get("/", list(s.ListConsumers))
			r.Post("/", insert(shop.NewConsumer, s.InsertConsumer))
			r.Get("/{id}", get(s.GetConsumer))
			r.Put("/{id}", update(shop.NewConsumer, s.UpdateConsumer))
			r.Get("/{id}/purchases", get(s.GetConsumerPurchases))
			r.Get("/{id}/deposits", get(s.GetConsumerDeposits))
			r.Get("/{id}/adminroles", get(s.GetAdminroles))
			r.Post("/{id}/adminroles", h.SetAdmin)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", list(s.ListProducts))
			r.Post("/", insert(shop.NewProduct, s.InsertProduct))
			r.Get("/{id}", get(s.GetProduct))
			r.Put("/{id}", update(shop.NewProduct, s.UpdateProduct))
			r.Get("/{id}/stockhistory", get(s.GetStockHistory))
		})

		r.Route("/departments", func(r chi.Router) {
			r.Get("/", list(s.ListDepartments))
			r.Post("/", insert(shop.NewDepartment, s.InsertDepartment))
			r.Get("/{id}", get(s.GetDepartment))
			r.Put("/{id}", update(shop.NewDepartment, s.UpdateDepartment))
			r.Get("/{id}/statistics", get(s.GetDepartmentStatistics))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", list(s.ListPurchases))
			r.Post("/", insert(shop.NewPurchase, h.insertPurchase))
			r.Get("/{id}", get(s.GetPurchase))
			r.Put("/{id}", update(shop.NewPurchase, s.UpdatePurchase))
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Get("/", list(s.ListDeposits))
			r.Post("/", insert(shop.NewDeposit, s.InsertDeposit))
			r.Get("/{id}", get(s.GetDeposit))
		})

		r.Route("/payoffs", func(r chi.Router) {
			r.Get("/", list(s.ListPayoffs))
			r.Post("/", insert(shop.NewPayoff, s.InsertPayoff))
			r.Get("/{id}", get(s.GetPayoff))
			r.Put("/{id}", update(shop.NewPayoff, s.UpdatePayoff))
		})

		r.Route("/departmentpurchases", func(r chi.Router) {
			r.Post("/", insert(shop.NewDepartmentPurchase, s.InsertDepartmentPurchase))
			r.Get("/{id}", get(s.GetDepartmentPurchase))
		})

		r.Route("/banks", func(r chi.Router) {
			r.Get("/", list(s.ListBanks))
			r.Get("/{id}", get(s.GetBank))
		})

		r.Route("/pricecategories", func(r chi.Router) {
			r.Get("/", list(s.ListPriceCategories))
			r.Post("/", insert(shop.NewPriceCategory, s.InsertPriceCategory))
		})

		r.Route("/workactivities", func(r chi.Router) {
			r.Get("/", list(s.ListWorkactivities))
			r.Post("/", insert(shop.NewWorkactivity, s.InsertWorkactivity))
			r.Get("/{id}", get(s.GetWorkactivity))
			r.Put("/{id}", update(shop.NewWorkactivity, s.UpdateWorkactivity))
		})
		r.Post("/participations", insert(shop.NewParticipation, s.InsertParticipation))

		r.Route("/activities", func(r chi.Router) {
			r.Get("/", list(s.ListActivities))
			r.Post("/", insert(shop.NewActivity, s.InsertActivity))
			r.Get("/{id}", get(s.GetActivity))
			r.Put("/{id}", update(shop.NewActivity, s.UpdateActivity))
		})
		r.Post("/activityfeedbacks", insert(shop.NewActivityFeedback, s.InsertActivityFeedback))

		r.Get("/logs", list(s.ListLogs))
	})

	return r
}
