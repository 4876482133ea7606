// Package api provides the HTTP API of the keepsake printing backend: the
// checkout endpoints buyers hit, the payment provider webhook, and the admin
// order operations. Authentication uses JWT bearer tokens issued by the
// identity provider; the token's userId claim resolves to a storefront user.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/stripe"
)

const jwtExpiration = 360 * time.Hour // 15 days

type Config struct {
	Host   string
	Port   int
	Secret string
	DB     *db.MongoStorage
	// Stripe is the payment service the handlers delegate to.
	Stripe *stripe.Service
	// WebAppURL is the public frontend URL, used for redirects.
	WebAppURL string
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	db        *db.MongoStorage
	auth      *jwtauth.JWTAuth
	host      string
	port      int
	router    *chi.Mux
	stripe    *stripe.Service
	secret    string
	webAppURL string
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	return &API{
		db:        conf.DB,
		auth:      jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:      conf.Host,
		port:      conf.Port,
		stripe:    conf.Stripe,
		secret:    conf.Secret,
		webAppURL: conf.WebAppURL,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	// protected routes
	r.Group(func(r chi.Router) {
		// seek, verify and validate JWT tokens
		r.Use(jwtauth.Verifier(a.auth))
		// handle valid JWT tokens
		r.Use(a.authenticator)
		// create a print purchase checkout session
		log.Infow("new route", "method", "POST", "path", checkoutEndpoint)
		r.Post(checkoutEndpoint, a.createCheckoutHandler)
		// get checkout session status
		log.Infow("new route", "method", "GET", "path", checkoutSessionEndpoint)
		r.Get(checkoutSessionEndpoint, a.checkoutSessionHandler)
		// create a subscription checkout session
		log.Infow("new route", "method", "POST", "path", subscriptionCheckoutEndpoint)
		r.Post(subscriptionCheckoutEndpoint, a.createSubscriptionCheckoutHandler)
		// list the user's subscriptions
		log.Infow("new route", "method", "GET", "path", mySubscriptionsEndpoint)
		r.Get(mySubscriptionsEndpoint, a.mySubscriptionsHandler)
		// list the user's orders
		log.Infow("new route", "method", "GET", "path", ordersEndpoint)
		r.Get(ordersEndpoint, a.myOrdersHandler)

		// admin routes
		r.Group(func(r chi.Router) {
			r.Use(a.adminOnly)
			// list orders, optionally filtered by status
			log.Infow("new route", "method", "GET", "path", adminOrdersEndpoint)
			r.Get(adminOrdersEndpoint, a.adminOrdersHandler)
			// get an order's audit trail
			log.Infow("new route", "method", "GET", "path", adminOrderAuditEndpoint)
			r.Get(adminOrderAuditEndpoint, a.adminOrderAuditHandler)
			// cancel an order
			log.Infow("new route", "method", "POST", "path", adminOrderCancelEndpoint)
			r.Post(adminOrderCancelEndpoint, a.adminCancelOrderHandler)
			// refund an order
			log.Infow("new route", "method", "POST", "path", adminOrderRefundEndpoint)
			r.Post(adminOrderRefundEndpoint, a.adminRefundOrderHandler)
			// hard-delete an order
			log.Infow("new route", "method", "DELETE", "path", adminOrderEndpoint)
			r.Delete(adminOrderEndpoint, a.adminDeleteOrderHandler)
		})
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(".")); err != nil {
				log.Warnw("failed to write ping response", "error", err)
			}
		})
		// handle payment provider webhook
		log.Infow("new route", "method", "POST", "path", stripeWebhookEndpoint)
		r.Post(stripeWebhookEndpoint, a.stripeWebhookHandler)
	})
	a.router = r
	return r
}
