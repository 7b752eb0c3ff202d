package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-sec/authgate/internal/authz"
	"github.com/kestrel-sec/authgate/internal/handlers"
	"github.com/kestrel-sec/authgate/internal/httpx"
	"github.com/kestrel-sec/authgate/internal/identity"
	mw2 "github.com/kestrel-sec/authgate/internal/mw"
	"github.com/kestrel-sec/authgate/internal/version"
)

type Options struct {
	EnableCORS bool
	Env        string
}

// Deps are the gateway's collaborators. Authorizer and Granter are the
// polymorphic decision/mutation contract; OPA and Graph expose the
// backend-specific admin and debug surfaces and are nil for the other
// backend.
type Deps struct {
	Verifier   *identity.Verifier
	Authorizer authz.Authorizer
	Granter    authz.Granter

	OPA   *authz.OPA
	Graph *authz.OpenFGA

	IntrospectURL  string
	OPAURL         string
	FGAAPIURL      string
	CredentialsDir string
}

func BuildRouter(d Deps, opts Options) http.Handler {
	r := chi.NewRouter()
	if opts.Env == "local" || opts.Env == "dev" {
		r.Use(mw2.NoStore)
	}

	// baseline
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if opts.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// tracing + logger
	r.Use(mw2.Trace())
	r.Use(mw2.Logger(mw2.LogOpts{
		SkipPaths:     []string{"/healthz", "/version", "/metrics"},
		RedactHeaders: []string{"Authorization"},
	}))

	resource := handlers.NewResourceHandler(d.Authorizer)
	grant := handlers.NewGrantHandler(d.Authorizer, d.Granter)

	r.Get("/healthz", healthCheckHandler)
	r.Get("/version", handlers.Version)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/resources/{resourceID}", func(pr chi.Router) {
		pr.Use(mw2.Authenticate(d.Verifier))
		pr.Get("/", resource.Get)
		pr.Put("/", resource.Update)
		pr.Delete("/", resource.Delete)
		pr.Post("/grant", grant.ServeHTTP)
	})

	if d.OPA != nil {
		admin := handlers.NewAdminHandler(d.OPA)
		r.Route("/admin", func(ar chi.Router) {
			ar.Post("/permissions", admin.UpdateData)
			ar.Post("/policy", admin.UpdatePolicy)
		})
	}

	dbg := &handlers.DebugHandler{
		Backend:       d.Authorizer.Backend(),
		OPAURL:        d.OPAURL,
		FGAAPIURL:     d.FGAAPIURL,
		IntrospectURL: d.IntrospectURL,
		CredsDir:      d.CredentialsDir,
		OPA:           d.OPA,
		Graph:         d.Graph,
	}
	r.Route("/debug", func(dr chi.Router) {
		dr.Get("/config", dbg.Config)
		dr.Get("/credentials", dbg.Credentials)
		if d.OPA != nil {
			dr.Get("/data", dbg.Data)
			dr.Get("/policies", dbg.Policies)
			dr.Post("/query", dbg.Query)
		}
		if d.Graph != nil {
			dr.Get("/tuples", dbg.Tuples)
		}
	})

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}
