package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/core/utils"
)

// MaxContentLength is the largest note accepted, in characters.
const MaxContentLength = 1_000_000

// Use a single instance of Validate, it caches struct info
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("noteid", func(fl validator.FieldLevel) bool {
		return utils.IsValidNoteID(fl.Field().String())
	})
	return v
}

// ==============================================================================
// 1. Request Payloads
// ==============================================================================

type CreateNoteRequest struct {
	// Optional. The client may pick the ID (share links are generated in the browser).
	ID string `json:"id" validate:"omitempty,noteid"`
}

type UpdateNoteRequest struct {
	// Pointer so an empty note is distinguishable from a missing field.
	Content *string `json:"content" validate:"required,max=1000000"`
}

type createNoteResponse struct {
	ID string `json:"id"`
}

// ==============================================================================
// 2. The Handler Struct
// ==============================================================================

type NoteHandler struct {
	Service domain.NoteService
}

func NewNoteHandler(service domain.NoteService) *NoteHandler {
	return &NoteHandler{Service: service}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// Create handles POST /api/v1/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid JSON payload"})
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		HandleError(w, r, err)
		return
	}

	id := req.ID
	if id == "" {
		generated, err := utils.GenerateNoteID()
		if err != nil {
			HandleError(w, r, err)
			return
		}
		id = generated
	}

	note, err := h.Service.Create(r.Context(), id)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createNoteResponse{ID: note.ID})
}

// Get handles GET /api/v1/notes/{id}. Opening an unknown ID creates the note.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.Service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Update handles PUT /api/v1/notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid JSON payload"})
		return
	}
	if err := validate.Struct(req); err != nil {
		HandleError(w, r, err)
		return
	}

	note, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), *req.Content)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
