/*
handlers.go - HTTP handlers for the shop ledger

PURPOSE:
  Maps requests onto store operations and errors onto responses. Request
  bodies are decoded into validated entities; the store does the rest.

REQUEST FLOW:
  1. Decode the JSON body (numbers kept exact via UseNumber)
  2. Build the entity, which runs the field validators
  3. Call the store operation
  4. Serialize the entity or the error

ERROR HANDLING:
  Every error goes through shop.Describe and is returned as
  {"error": {"code", "types", "message", "field"}} with its status code.
  An update that changes nothing answers 200 with the "noop" category.

QUERY PARAMETERS:
  limit  On listings: the n most recent rows, newest first. Without it
         all rows are returned oldest first.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/campus-shop/shop"
	"github.com/warp/campus-shop/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Pricing shop.Pricing
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, pricing shop.Pricing) *Handler {
	return &Handler{Store: store, Pricing: pricing}
}

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) insertPurchase(ctx context.Context, p *shop.Purchase) (*shop.Purchase, error) {
	return h.Store.InsertPurchase(ctx, p, h.Pricing)
}

// SetAdmin grants or withdraws the admin role of the consumer in the path.
func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	consumerID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req SetAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", shop.ErrInvalidJSON, err))
		return
	}
	if req.DepartmentID == nil || req.Admin == nil {
		writeError(w, &shop.FieldError{Err: shop.ErrFieldIsNone, Field: missingAdminField(req)})
		return
	}

	if err := h.Store.SetAdmin(r.Context(), consumerID, *req.DepartmentID, *req.Admin); err != nil {
		writeError(w, err)
		return
	}

	roles, err := h.Store.GetAdminroles(r.Context(), consumerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func missingAdminField(req SetAdminRequest) string {
	if req.DepartmentID == nil {
		return "department_id"
	}
	return "admin"
}

// =============================================================================
// GENERIC HANDLERS
// =============================================================================

func list[T any](fn func(context.Context, int) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := fn(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func get[T any](fn func(context.Context, int64) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		item, err := fn(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func insert[T shop.Record, R any](newFn func() T, fn func(context.Context, T) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}
		entity, err := shop.Build(newFn, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		created, err := fn(r.Context(), entity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// update applies the body as a partial update of the row in the path.
func update[T shop.Record](newFn func() T, fn func(context.Context, T) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, ok := fields["id"]; ok {
			writeError(w, &shop.FieldError{Err: shop.ErrForbiddenField, Field: "id"})
			return
		}
		fields["id"] = id

		patch, err := shop.Build(newFn, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		updated, err := fn(r.Context(), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(updated) == 0 {
			writeError(w, shop.ErrNothingHasChanged)
			return
		}
		writeJSON(w, http.StatusOK, UpdateResponse{Updated: updated})
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeFields(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", shop.ErrInvalidJSON, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be an object", shop.ErrInvalidJSON)
	}
	return fields, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, &shop.FieldError{Err: shop.ErrWrongType, Field: "id", Bound: "int"}
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &shop.FieldError{Err: shop.ErrWrongType, Field: "limit", Bound: "int"}
	}
	if limit < 1 {
		return 0, &shop.FieldError{Err: shop.ErrMinimumValueUndershot, Field: "limit", Bound: 1}
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	info := shop.Describe(err)
	if info.Code >= http.StatusInternalServerError {
		log.Printf("[API] internal error: %v", err)
	}
	writeJSON(w, info.Code, ErrorResponse{Error: info})
}
