// Package httpserver serves read-only registry snapshots, the address calculator,
// health and metrics over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/repository"
	"github.com/and161185/car-registry/internal/service"
)

// Handler wires snapshot endpoints to the registry service.
type Handler struct {
	svc      service.RegistryService
	deriver  address.Deriver
	log      *zap.Logger
	gatherer prometheus.Gatherer
}

// New constructs a snapshot handler. gatherer backs /metrics.
func New(svc service.RegistryService, d address.Deriver, log *zap.Logger, gatherer prometheus.Gatherer) *Handler {
	return &Handler{svc: svc, deriver: d, log: log, gatherer: gatherer}
}

// Router mounts every endpoint on a fresh chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.logRequests)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/records/{address}", h.handleRecord)
		r.Get("/cars", h.handleCarsByOwner)
		r.Get("/cars/{address}/buy-requests", h.handleCarChildren(h.svc.ListBuyRequests))
		r.Get("/cars/{address}/reports", h.handleCarChildren(h.svc.ListCarReports))
		r.Get("/cars/{address}/conformity-reports", h.handleCarChildren(h.svc.ListConformityReports))
		r.Get("/derive/{kind}", h.handleDerive)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordView is the JSON snapshot of one record.
type recordView struct {
	Address string       `json:"address"`
	Kind    model.Kind   `json:"kind"`
	Record  model.Record `json:"record"`
	// EffectiveInspectionStatus is set for cars; Passed turns Expired once stale.
	EffectiveInspectionStatus *model.InspectionStatus `json:"effectiveInspectionStatus,omitempty"`
}

func (h *Handler) view(addr model.Address, rec model.Record) recordView {
	v := recordView{Address: addr.String(), Kind: rec.Kind(), Record: rec}
	if car, ok := rec.(*model.Car); ok {
		st := h.svc.InspectionStatus(car)
		v.EffectiveInspectionStatus = &st
	}
	return v
}

func (h *Handler) views(entries []repository.Entry) []recordView {
	out := make([]recordView, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.view(e.Address, e.Record))
	}
	return out
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), addr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(addr, rec))
}

func (h *Handler) handleCarsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := parsePubkey("owner", r.URL.Query().Get("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	cars, err := h.svc.ListCarsByOwner(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views(cars))
}

type listFunc func(ctx context.Context, car model.Address) ([]repository.Entry, error)

func (h *Handler) handleCarChildren(list listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, err := parseAddress(chi.URLParam(r, "address"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		entries, err := list(r.Context(), car)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.views(entries))
	}
}

type derived struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// handleDerive computes a record address from its natural key:
//
//	/v1/derive/user?authority=&name=
//	/v1/derive/car?government=&vin=
//	/v1/derive/buy-request?vin=&buyer=
//	/v1/derive/car-report?car=&inspector=&report_id=
//	/v1/derive/conformity-report?car=&expert=&report_id=
func (h *Handler) handleDerive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		addr model.Address
		bump uint8
		err  error
	)
	switch kind := chi.URLParam(r, "kind"); kind {
	case "user":
		var k model.Pubkey
		if k, err = parsePubkey("authority", q.Get("authority")); err == nil {
			addr, bump, err = h.deriver.User(k, q.Get("name"))
		}
	case "car":
		var k model.Pubkey
		if k, err = parsePubkey("government", q.Get("government")); err == nil {
			addr, bump, err = h.deriver.Car(k, q.Get("vin"))
		}
	case "buy-request":
		var k model.Pubkey
		if k, err = parsePubkey("buyer", q.Get("buyer")); err == nil {
			addr, bump, err = h.deriver.BuyRequest(q.Get("vin"), k)
		}
	case "car-report", "conformity-report":
		signer := "inspector"
		derive := h.deriver.CarReport
		if kind == "conformity-report" {
			signer, derive = "expert", h.deriver.ConformityReport
		}
		var car model.Address
		var k model.Pubkey
		if car, err = parseAddress(q.Get("car")); err == nil {
			if k, err = parsePubkey(signer, q.Get(signer)); err == nil {
				addr, bump, err = derive(car, k, q.Get("report_id"))
			}
		}
	default:
		err = fmt.Errorf("unknown kind %q: %w", kind, errs.ErrInvalidArgument)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, derived{Address: addr.String(), Bump: bump})
}

func parseAddress(s string) (model.Address, error) {
	a, err := model.ParseAddress(s)
	if err != nil {
		return model.Address{}, fmt.Errorf("%v: %w", err, errs.ErrInvalidArgument)
	}
	return a, nil
}

func parsePubkey(field, s string) (model.Pubkey, error) {
	k, err := model.ParsePubkey(s)
	if err != nil {
		return model.Pubkey{}, fmt.Errorf("%s: %v: %w", field, err, errs.ErrInvalidArgument)
	}
	return k, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrNoBump):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrRelationMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.log.Error("snapshot query", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": errs.Code(err), "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
