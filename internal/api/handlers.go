package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mwhite7112/woodpantry-reconcile/internal/convert"
	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/service"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func NewRouter(svc *service.Service, reg *prometheus.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", handleHealth)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Post("/parse", handleParse(svc))
	r.Post("/convert", handleConvert(svc))
	r.Post("/plan", handlePlan(svc))
	r.Get("/recipes/{id}/plan", handleRecipePlan(svc))
	r.Post("/recipes/{id}/complete", handleComplete(svc))
	r.Get("/completions", handleCompletions(svc))
	r.Post("/admin/reload", handleReload(svc))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
}

type parseRequest struct {
	Lines []string `json:"lines" validate:"required,min=1,max=200,dive,max=500"`
}

func handleParse(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req parseRequest
		if !decode(w, r, &req) {
			return
		}
		jsonOK(w, svc.ParseLines(req.Lines))
	}
}

type convertRequest struct {
	Amount     *float64 `json:"amount" validate:"required"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Ingredient string   `json:"ingredient"`
	Size       string   `json:"size"`
}

type convertResponse struct {
	Amount     float64      `json:"amount"`
	Unit       string       `json:"unit"`
	Confidence float64      `json:"confidence"`
	Tier       convert.Tier `json:"tier"`
}

// handleConvert converts an ad-hoc quantity. An empty "from" is a bare
// count and an empty "to" is "each".
func handleConvert(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req convertRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := svc.Convert(*req.Amount, req.From, req.To, req.Ingredient, req.Size)
		if err != nil {
			writeError(w, "conversion failed", err)
			return
		}
		unit := "each"
		if u, err := svc.Catalog().Resolve(req.To); err == nil {
			unit = u.Name
		}
		jsonOK(w, convertResponse{
			Amount:     res.Rounded(),
			Unit:       unit,
			Confidence: res.Confidence,
			Tier:       res.Tier,
		})
	}
}

type planRequest struct {
	Lines  []string           `json:"lines" validate:"required,min=1,max=200,dive,max=500"`
	Pantry []domain.PantryItem `json:"pantry" validate:"omitempty,dive"`
}

// handlePlan plans lines against the inline pantry snapshot when one is
// given, otherwise against the live pantry. Deltas are reported but nothing
// is deducted.
func handlePlan(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if !decode(w, r, &req) {
			return
		}

		// An absent pantry decodes as nil and selects the live pantry.
		plan, err := svc.PlanLines(r.Context(), req.Lines, req.Pantry)
		if err != nil {
			writeError(w, "planning failed", err)
			return
		}

		out := *plan
		out.Plans = roundPlans(plan.Plans)
		out.Deltas = roundDeltas(plan.Deltas)
		jsonOK(w, out)
	}
}

func handleRecipePlan(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := svc.PlanRecipe(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, "planning failed", err)
			return
		}
		jsonOK(w, roundRecipePlan(plan))
	}
}

// handleComplete deducts the recipe's plan from the pantry and records the
// completion.
func handleComplete(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done, err := svc.CompleteRecipe(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, "completion failed", err)
			return
		}
		done.Plan = roundRecipePlan(done.Plan)
		jsonOK(w, done)
	}
}

// handleCompletions lists recorded completions.
//
// Query params:
//   - recipe_id=ID: only completions of that recipe
//   - limit=N: at most N events (default 50)
func handleCompletions(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		events, err := svc.Completions(r.Context(), r.URL.Query().Get("recipe_id"), limit)
		if err != nil {
			writeError(w, "listing completions failed", err)
			return
		}
		jsonOK(w, events)
	}
}

func handleReload(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := svc.ReloadDensities(r.Context())
		if err != nil {
			writeError(w, "reload failed", err)
			return
		}
		jsonOK(w, map[string]int{"density_version": version})
	}
}

func roundPlans(plans []service.UsagePlan) []service.UsagePlan {
	out := make([]service.UsagePlan, len(plans))
	for i, p := range plans {
		out[i] = p.Rounded()
	}
	return out
}

func roundDeltas(deltas []domain.PantryDelta) []domain.PantryDelta {
	out := make([]domain.PantryDelta, len(deltas))
	for i, d := range deltas {
		d.Consumed = ingredient.Round2(d.Consumed)
		d.Remaining = ingredient.Round2(d.Remaining)
		out[i] = d
	}
	return out
}

func roundRecipePlan(p *service.RecipePlan) *service.RecipePlan {
	out := *p
	out.Plans = roundPlans(p.Plans)
	out.Deltas = roundDeltas(p.Deltas)
	return &out
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, prefix string, err error) {
	var integrity *domain.DataIntegrityError
	switch {
	case errors.As(err, &integrity):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      prefix + ": " + err.Error(),
			"violations": integrity.Violations,
		})
	case errors.Is(err, service.ErrInvalidInput):
		jsonError(w, prefix+": "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrRecipeNotFound):
		jsonError(w, prefix+": "+err.Error(), http.StatusNotFound)
	case errors.Is(err, convert.ErrConversionUnresolved):
		jsonError(w, prefix+": "+err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrReloadUnavailable):
		jsonError(w, prefix+": "+err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrUpstream):
		jsonError(w, prefix+": "+err.Error(), http.StatusBadGateway)
	default:
		jsonError(w, prefix+": "+err.Error(), http.StatusInternalServerError)
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
