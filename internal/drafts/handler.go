package drafts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/catalog/internal/platform/httpx"
	"github.com/odyssey-erp/catalog/internal/rbac"
	"github.com/odyssey-erp/catalog/internal/shared"
)

const maxBodyBytes = 1 << 20

// Handler serves the product draft JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers the /product-drafts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/product-drafts", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.PermProductDraftView, shared.PermProductDraftEdit))
			r.Get("/", h.list)
			r.Get("/active", h.listActive)
			r.Get("/status/{status}", h.listByStatus)
			r.Get("/trashed", h.listTrashed)
			r.Get("/{id}", h.show)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermProductDraftEdit))
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermProductDraftPublish))
			r.Post("/{id}/publish", h.publish)
			r.Post("/{id}/unpublish", h.unpublish)
			r.Post("/bulk-publish", h.bulkPublish)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermProductDraftDelete))
			r.Delete("/{id}", h.softDelete)
			r.Post("/{id}/restore", h.restore)
			r.Post("/bulk-delete", h.bulkDelete)
			r.Post("/bulk-restore", h.bulkRestore)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermProductDraftForceDelete))
			r.Delete("/{id}/force", h.forceDelete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.respondPage(w, r, ListQuery{})
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	h.respondPage(w, r, ListQuery{ActiveOnly: true})
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	h.respondPage(w, r, ListQuery{Status: Status(strings.ToLower(chi.URLParam(r, "status")))})
}

func (h *Handler) respondPage(w http.ResponseWriter, r *http.Request, q ListQuery) {
	q.Page, q.PerPage = pageParams(r)
	page, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product drafts retrieved successfully", page)
}

func (h *Handler) listTrashed(w http.ResponseWriter, r *http.Request) {
	p, perPage := pageParams(r)
	page, err := h.service.ListTrashed(r.Context(), p, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Trashed product drafts retrieved successfully", page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	withTrashed := false
	if raw := r.URL.Query().Get("trashed"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "trashed must be a boolean")
			return
		}
		withTrashed = parsed
	}
	d, err := h.service.Get(r.Context(), id, withTrashed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft retrieved successfully", d)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Product draft created successfully", d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in Input
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft updated successfully", d)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Publish(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msg := "Product draft published successfully"
	if res.AlreadyPublished {
		msg = "Product draft is already published"
	}
	httpx.OK(w, http.StatusOK, msg, res)
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Unpublish(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft unpublished successfully", d)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft deleted successfully", nil)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft restored successfully", d)
}

func (h *Handler) forceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.ForceDelete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product draft permanently deleted", nil)
}

type bulkRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkProblem struct {
	httpx.ProblemDetail
	Data BulkResult `json:"data"`
}

func (h *Handler) bulkPublish(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, "published", h.service.BulkPublish)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, "deleted", h.service.BulkDelete)
}

func (h *Handler) bulkRestore(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, "restored", h.service.BulkRestore)
}

func (h *Handler) runBulk(w http.ResponseWriter, r *http.Request, verb string, op func(context.Context, []int64) (BulkResult, error)) {
	var req bulkRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := op(r.Context(), req.IDs)
	if err != nil {
		mapped := h.classify(r, err)
		status := httpx.StatusFor(mapped)
		detail := err.Error()
		if status >= http.StatusInternalServerError {
			detail = "bulk operation rolled back"
		}
		problem := bulkProblem{
			ProblemDetail: httpx.ProblemDetail{Title: http.StatusText(status), Status: status, Detail: detail},
			Data:          res,
		}
		var fe httpx.FieldErrors
		if errors.As(mapped, &fe) {
			problem.Errors = fe.FieldErrors()
		}
		httpx.JSON(w, status, problem)
		return
	}
	httpx.OK(w, http.StatusOK, "Product drafts "+verb+" successfully", res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.RespondError(w, h.classify(r, err))
}

// classify attaches the httpx category to a domain error and logs anything
// that will surface as an internal error.
func (h *Handler) classify(r *http.Request, err error) error {
	var kind error
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotPublished),
		errors.Is(err, ErrUnknownStatus), errors.Is(err, ErrEmptyBatch):
		kind = httpx.ErrValidation
	case errors.Is(err, ErrNotFound):
		kind = httpx.ErrNotFound
	case errors.Is(err, ErrForbidden):
		kind = httpx.ErrForbidden
	default:
		h.logger.Error("product draft request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		return err
	}
	return categorized{kind: kind, err: err}
}

type categorized struct {
	kind error
	err  error
}

func (c categorized) Error() string   { return c.err.Error() }
func (c categorized) Unwrap() []error { return []error{c.kind, c.err} }

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("limit"))
	if perPage == 0 {
		perPage, _ = strconv.Atoi(q.Get("per_page"))
	}
	return page, perPage
}
