package http

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/services"
)

type namedRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type namedPatchRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
}

type productRequest struct {
	Name       string      `json:"name" validate:"required,max=100"`
	Brand      string      `json:"brand" validate:"max=100"`
	Price      flexDecimal `json:"price"`
	Unit       string      `json:"unit" validate:"omitempty,oneof=unit kg g l ml"`
	Quantity   flexDecimal `json:"quantity"`
	CategoryID string      `json:"categoryId" validate:"required"`
	StoreID    string      `json:"storeId" validate:"required"`
	Notes      string      `json:"notes" validate:"max=500"`
}

type productPatchRequest struct {
	Name       *string      `json:"name" validate:"omitempty,max=100"`
	Brand      *string      `json:"brand" validate:"omitempty,max=100"`
	Price      *flexDecimal `json:"price"`
	Unit       *string      `json:"unit" validate:"omitempty,oneof=unit kg g l ml"`
	Quantity   *flexDecimal `json:"quantity"`
	CategoryID *string      `json:"categoryId"`
	StoreID    *string      `json:"storeId"`
	Notes      *string      `json:"notes" validate:"omitempty,max=500"`
}

type priceRequest struct {
	Price flexDecimal `json:"price"`
	Store string      `json:"store" validate:"max=100"`
	Date  string      `json:"date"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// --- categories ---

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Categories.List(r.Context(), sessionFrom(r))
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Categories.Add(r.Context(), sessionFrom(r), services.CategoryInput{Name: req.Name})
	respond(w, r, http.StatusCreated, createdResponse{ID: id}, err)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Categories.Get(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, c, err)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req namedPatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Update(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), services.CategoryPatch{Name: req.Name})
	respond(w, r, http.StatusOK, c, err)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Categories.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true}, err)
}

// --- stores ---

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Stores.List(r.Context(), sessionFrom(r))
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Stores.Add(r.Context(), sessionFrom(r), services.StoreInput{Name: req.Name})
	respond(w, r, http.StatusCreated, createdResponse{ID: id}, err)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stores.Get(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, st, err)
}

func (s *Server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	var req namedPatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.Stores.Update(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), services.StorePatch{Name: req.Name})
	respond(w, r, http.StatusOK, st, err)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Stores.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true}, err)
}

// --- products ---

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.svc.Products.List(r.Context(), sessionFrom(r), services.ProductQuery{
		CategoryID: q.Get("categoryId"),
		StoreID:    q.Get("storeId"),
		Brand:      q.Get("brand"),
		Search:     q.Get("search"),
		SortBy:     q.Get("sortBy"),
		SortDir:    q.Get("sortDir"),
	})
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := req.Price.price()
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := req.Quantity.quantity()
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.svc.Products.Add(r.Context(), sessionFrom(r), services.ProductInput{
		Name:       req.Name,
		Brand:      req.Brand,
		Price:      price,
		Unit:       core.Unit(req.Unit),
		Quantity:   qty,
		CategoryID: req.CategoryID,
		StoreID:    req.StoreID,
		Notes:      req.Notes,
	})
	if err == nil {
		atomic.AddInt64(&s.metrics.priceWrites, 1)
	}
	respond(w, r, http.StatusCreated, createdResponse{ID: id}, err)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Products.Get(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, p, err)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Products.Update(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), patch)
	if err == nil && patch.Price != nil {
		atomic.AddInt64(&s.metrics.priceWrites, 1)
	}
	respond(w, r, http.StatusOK, p, err)
}

func (req productPatchRequest) toPatch() (services.ProductPatch, error) {
	patch := services.ProductPatch{
		Name:       req.Name,
		Brand:      req.Brand,
		CategoryID: req.CategoryID,
		StoreID:    req.StoreID,
		Notes:      req.Notes,
	}
	if req.Price != nil {
		price, err := req.Price.price()
		if err != nil {
			return services.ProductPatch{}, err
		}
		patch.Price = &price
	}
	if req.Quantity != nil {
		qty, err := core.ParseDecimal("quantity", string(*req.Quantity))
		if err != nil {
			return services.ProductPatch{}, err
		}
		patch.Quantity = &qty
	}
	if req.Unit != nil {
		u := core.Unit(*req.Unit)
		patch.Unit = &u
	}
	return patch, nil
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Products.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true}, err)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Products.History(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleRecordPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := req.Price.price()
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseObservedAt(req.Date, s.opts.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.svc.History.Record(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), price, req.Store, date)
	if err == nil {
		atomic.AddInt64(&s.metrics.priceWrites, 1)
	}
	respond(w, r, http.StatusCreated, entry, err)
}

// respond writes data with status, or the error when err is non-nil.
func respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, status, data)
}
