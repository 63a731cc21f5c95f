package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/storefront-backend/internal/api/middleware"
	"github.com/example/storefront-backend/internal/auth"
)

// NewRouter builds the HTTP surface. Order placement is open to guests;
// every other route requires a verified identity or a service API key,
// with fine-grained checks inside the handlers.
func NewRouter(handlers *Handlers, verifier *auth.Verifier, authorizer *auth.Authorizer, apiKeys []string) http.Handler {
	mux := http.NewServeMux()

	requireCred := middleware.RequireCredential(apiKeys)
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return requireCred(h).ServeHTTP
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			guard(handlers.ListOrders)(w, r)
		case http.MethodPost:
			handlers.CreateOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/orders/", guard(func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r.URL.Path, "/orders/")
		switch {
		case len(parts) == 2 && parts[0] == "user" && r.Method == http.MethodGet:
			handlers.UserOrders(w, r, parts[1])
		case len(parts) == 3 && parts[0] == "user" && parts[2] == "active" && r.Method == http.MethodGet:
			handlers.ActiveOrder(w, r, parts[1])
		case len(parts) == 1 && r.Method == http.MethodGet:
			handlers.GetOrder(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodGet:
			handlers.ListMessages(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
			handlers.AddMessage(w, r, parts[0])
		case len(parts) == 2 && r.Method == http.MethodPost:
			handlers.TransitionOrder(w, r, parts[0], parts[1])
		default:
			http.NotFound(w, r)
		}
	}))

	mux.HandleFunc("/users", guard(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.ListUsers(w, r)
		case http.MethodPost:
			handlers.UpsertUser(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/users/", guard(func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r.URL.Path, "/users/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			handlers.GetUser(w, r, parts[0])
		case len(parts) == 1 && r.Method == http.MethodDelete:
			handlers.DeactivateUser(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "profile" && r.Method == http.MethodPatch:
			handlers.UpdateProfile(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "share-coupons" && r.Method == http.MethodGet:
			handlers.ListShareCoupons(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "share-coupons" && r.Method == http.MethodPost:
			handlers.IssueShareCoupons(w, r, parts[0])
		case len(parts) == 4 && parts[1] == "share-coupons" && parts[3] == "activate" && r.Method == http.MethodPost:
			handlers.ActivateShareCoupon(w, r, parts[0], parts[2])
		case len(parts) == 2 && parts[1] == "discounts" && r.Method == http.MethodPost:
			handlers.GrantDiscount(w, r, parts[0])
		default:
			http.NotFound(w, r)
		}
	}))

	mux.HandleFunc("/share-coupons", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			guard(handlers.ListShareCouponsGlobal)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/discount-codes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			guard(handlers.ListDiscountCodes)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	authenticate := middleware.Authenticate(verifier, authorizer)
	return withLogging(authenticate(mux))
}

func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("request")
		next.ServeHTTP(w, r)
	})
}
