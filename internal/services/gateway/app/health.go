package app

import (
	"context"
	"net/http"
	"time"
)

const checkTimeout = 2 * time.Second

func (g *Gateway) runChecks(ctx context.Context) (map[string]bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	deps := make(map[string]bool, len(g.cfg.Checks))
	all := true
	for name, check := range g.cfg.Checks {
		ok := check != nil && check(ctx)
		deps[name] = ok
		all = all && ok
	}
	return deps, all
}

// healthHandler always answers 200 while the process serves; status is
// "degraded" when a dependency is down.
func (g *Gateway) healthHandler() http.Handler {
	type status struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deps, all := g.runChecks(r.Context())
		st := status{Status: "ok", Deps: deps}
		if !all {
			st.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// readyHandler answers 200 only when every dependency is ok.
func (g *Gateway) readyHandler() http.Handler {
	type resp struct {
		Ready bool `json:"ready"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ready := g.runChecks(r.Context())
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp{Ready: ready})
	})
}
