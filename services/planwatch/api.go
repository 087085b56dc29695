package planwatch

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"launtel-backend/lib/planstore"
	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/serviceutil"
)

type changeRequest struct {
	Psid  int    `json:"psid"`
	Label string `json:"label"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter exposes the coordinator over JSON. An empty accessToken
// leaves the API open.
func NewRouter(c *Coordinator, store *planstore.Store, accessToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(serviceutil.VerifyAccessToken(accessToken))

	r.Get("/snapshot", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := c.Snapshot()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, req, errorResponse{Error: "no snapshot yet"})
			return
		}
		render.JSON(w, req, snap)
	})

	r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
		if store == nil {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, req, errorResponse{Error: "history not enabled"})
			return
		}
		since := time.Time{}
		if raw := req.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, req, errorResponse{Error: "since must be RFC 3339"})
				return
			}
			since = parsed
		}
		records, err := store.Pull(req.Context(), c.opts.ServiceID, since)
		if err != nil {
			slog.ErrorContext(req.Context(), "failed to pull history", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, req, errorResponse{Error: "internal error"})
			return
		}
		render.JSON(w, req, records)
	})

	r.Post("/refresh", func(w http.ResponseWriter, req *http.Request) {
		snap, err := c.Refresh(req.Context())
		if err != nil {
			slog.ErrorContext(req.Context(), "forced refresh failed", "err", err)
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, req, errorResponse{Error: err.Error()})
			return
		}
		render.JSON(w, req, snap)
	})

	r.Post("/change", func(w http.ResponseWriter, req *http.Request) {
		var body changeRequest
		if err := render.DecodeJSON(req.Body, &body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, req, errorResponse{Error: "malformed request body"})
			return
		}
		psid, err := resolvePsid(c, body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, req, errorResponse{Error: err.Error()})
			return
		}
		if err := c.SubmitChange(req.Context(), psid); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, launtel.ErrPlanChange) {
				status = http.StatusConflict
			}
			w.WriteHeader(status)
			render.JSON(w, req, errorResponse{Error: err.Error()})
			return
		}
		render.JSON(w, req, map[string]any{"submitted": true, "psid": psid})
	})

	return r
}

func resolvePsid(c *Coordinator, body changeRequest) (int, error) {
	if body.Psid != 0 {
		return body.Psid, nil
	}
	if body.Label == "" {
		return 0, errors.New("either psid or label is required")
	}
	snap, ok := c.Snapshot()
	if !ok {
		return 0, errors.New("no snapshot yet")
	}
	if psid, ok := snap.LabelToPsid[body.Label]; ok {
		return psid, nil
	}
	return 0, errors.New("unknown plan label " + strconv.Quote(body.Label))
}
