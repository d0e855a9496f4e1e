package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	httpmiddleware "github.com/decidiu/plataforma/internal/http/middleware"
	"github.com/decidiu/plataforma/internal/service"
	"github.com/decidiu/plataforma/internal/storage"
)

// ListUsers lista usuários com filtros e paginação.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListUsersInput{
		Search: strings.TrimSpace(q.Get("search")),
		Role:   strings.TrimSpace(q.Get("role")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	var ok bool
	if in.Page, ok = queryInt(w, q.Get("page"), "page"); !ok {
		return
	}
	if in.PerPage, ok = queryInt(w, q.Get("per_page"), "per_page"); !ok {
		return
	}

	page, err := h.deps.Users.List(r.Context(), httpmiddleware.CallerFrom(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// CreateUser cria o usuário e o registro especializado do cargo.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := h.deps.Users.Create(r.Context(), httpmiddleware.CallerFrom(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.deps.Users.Get(r.Context(), httpmiddleware.CallerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

// UpdateUser altera dados cadastrais; cargo e status só por administrador.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var in service.UpdateUserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.deps.Users.Update(r.Context(), httpmiddleware.CallerFrom(r.Context()), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.deps.Users.SetStatus(r.Context(), httpmiddleware.CallerFrom(r.Context()), id, payload.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.deps.Users.Delete(r.Context(), httpmiddleware.CallerFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "usuário excluído"})
}

// UploadDocument recebe o documento profissional via multipart (campo "file").
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxDocumentSize+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxDocumentSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "VALIDATION", "arquivo excede 10 MB", nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo obrigatório", map[string]string{"file": "arquivo obrigatório"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "falha ao ler arquivo", nil)
		return
	}

	url, err := h.deps.Users.AttachDocument(r.Context(), httpmiddleware.CallerFrom(r.Context()), id, body, header.Filename)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

func queryInt(w http.ResponseWriter, raw, field string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", field+" inválido", map[string]string{field: "deve ser inteiro positivo"})
		return 0, false
	}
	return n, true
}
