package handlers

import (
	"net/http"

	"tenderfinder/internal/ingest"
	"tenderfinder/models"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.Accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// LogoutHandler: токены не хранятся на сервере, клиент просто забывает свой
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) CheckAuthHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "user": user})
}

// Администрирование

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Accounts.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.User{"users": users})
}

func (h *Handler) ToggleAdminHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	isAdmin, err := h.Accounts.ToggleAdmin(r.Context(), actor, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": userID, "is_admin": isAdmin})
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Accounts.DeleteUser(r.Context(), actor, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user deleted"})
}

// ReceiveProductsHandler - приём пачки товаров от пайплайна сбора
func (h *Handler) ReceiveProductsHandler(w http.ResponseWriter, r *http.Request) {
	var batch ingest.Batch
	if err := decodeJSON(w, r, &batch); err != nil {
		h.writeError(w, r, err)
		return
	}
	receipt, err := h.Ingest.Accept(r.Context(), batch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
