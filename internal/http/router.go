package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultMaxBodyBytes = 20 << 10

// Handlers groups everything NewRouter mounts under /api/v1.
type Handlers struct {
	Users     *UserHandler
	Addresses *AddressHandler
	Catalog   *CatalogHandler
	Carts     *CartHandler
	Orders    *OrdersHandler
	Payments  *PaymentHandler
	Ratings   *RatingHandler
}

func NewRouter(h Handlers, auth Authenticator, requestTimeout time.Duration, maxBodyBytes int64) chi.Router {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(BodyLimit(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, "OK", nil)
	})

	authed := Authenticate(auth)
	admin := RequireRole(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Users.Register)
			r.Post("/login", h.Users.Login)
			r.Post("/refresh_token", h.Users.RefreshToken)
			r.Get("/verify-email", h.Users.VerifyEmail)

			r.Group(func(r chi.Router) {
				r.Use(authed)
				r.Post("/logout", h.Users.Logout)
				r.Post("/change-password", h.Users.ChangePassword)
				r.Get("/current-user", h.Users.CurrentUser)
				r.Patch("/account-detail", h.Users.UpdateAccount)
			})
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Use(authed)
			r.Post("/", h.Addresses.Create)
			r.Get("/", h.Addresses.List)
			r.Patch("/{addressId}", h.Addresses.Update)
			r.Delete("/{addressId}", h.Addresses.Delete)
			r.Patch("/{addressId}/default", h.Addresses.SetDefault)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.Catalog.ListCategories)
			r.Get("/{categoryId}", h.Catalog.GetCategory)

			r.Group(func(r chi.Router) {
				r.Use(authed, admin)
				r.Post("/", h.Catalog.CreateCategory)
				r.Patch("/{categoryId}", h.Catalog.UpdateCategory)
				r.Delete("/{categoryId}", h.Catalog.DeleteCategory)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Catalog.ListProducts)
			r.Get("/{productId}", h.Catalog.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(authed, admin)
				r.Post("/", h.Catalog.CreateProduct)
				r.Patch("/{productId}", h.Catalog.UpdateProduct)
				r.Delete("/{productId}", h.Catalog.DeleteProduct)
			})
		})

		r.Route("/carts", func(r chi.Router) {
			r.Use(authed)
			r.Post("/", h.Carts.AddItem)
			r.Get("/", h.Carts.GetCart)
			r.Patch("/", h.Carts.UpdateQuantity)
			r.Delete("/", h.Carts.ClearCart)
			r.Delete("/{productId}", h.Carts.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authed)
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/", h.Orders.ListOrders)
			r.With(admin).Get("/all", h.Orders.ListAllOrders)
			r.Get("/{orderId}", h.Orders.GetOrder)
			r.With(admin).Patch("/{orderId}/status", h.Orders.UpdateStatus)
			r.Patch("/{orderId}/cancel", h.Orders.CancelOrder)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(authed)
			r.Post("/initiate/{orderId}", h.Payments.Initiate)
			r.Patch("/verify/{orderId}", h.Payments.Verify)
			r.Get("/{paymentId}", h.Payments.Status)
		})

		r.Route("/ratings", func(r chi.Router) {
			r.Use(authed)
			r.Post("/product/{productId}", h.Ratings.Add)
			r.Get("/product/{productId}", h.Ratings.ListForProduct)
			r.Patch("/{ratingId}", h.Ratings.Update)
			r.Delete("/{ratingId}", h.Ratings.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondErr(w, r, domain.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, Envelope{Message: "method not allowed", Errors: []string{}})
	})
	return r
}
