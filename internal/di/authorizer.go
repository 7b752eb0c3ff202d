// Package di wires the configured backend into the gateway's dependencies.
package di

import (
	"fmt"

	"github.com/kestrel-sec/authgate/internal/authz"
	"github.com/kestrel-sec/authgate/internal/config"
	"github.com/kestrel-sec/authgate/internal/identity"
	"github.com/kestrel-sec/authgate/internal/server"
)

// BuildDeps assembles the verifier and the PDP clients for cfg.Backend.
func BuildDeps(cfg *config.Config) (server.Deps, error) {
	d := server.Deps{
		Verifier:       identity.NewVerifier(cfg.IntrospectURL),
		IntrospectURL:  cfg.IntrospectURL,
		OPAURL:         cfg.OPAURL,
		FGAAPIURL:      cfg.FGAAPIURL,
		CredentialsDir: cfg.CredentialsDir,
	}

	switch cfg.Backend {
	case "opa", "":
		o := authz.NewOPA(cfg.OPAURL)
		d.Authorizer = o
		d.Granter = o
		d.OPA = o
	case "fga":
		var src authz.StoreIDSource
		if cfg.FGAStoreID != "" {
			src = authz.StaticStoreIDSource(cfg.FGAStoreID)
		} else {
			src = authz.FileStoreIDSource{Path: cfg.FGAStoreIDFile}
		}
		f := authz.NewOpenFGA(cfg.FGAAPIURL, src)
		d.Authorizer = f
		d.Granter = f
		d.Graph = f
	case "mock":
		m := &authz.Mock{AlwaysAllow: true}
		d.Authorizer = m
		d.Granter = m
	default:
		return server.Deps{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return d, nil
}
