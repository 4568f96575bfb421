// Package handler содержит HTTP-обработчики API агента Walle.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/walleai/walle-agent/internal/calendar"
	"github.com/walleai/walle-agent/internal/gemini"
	"github.com/walleai/walle-agent/internal/middleware"
	"github.com/walleai/walle-agent/internal/model"
	"github.com/walleai/walle-agent/internal/repository"
	"github.com/walleai/walle-agent/internal/service"
	"github.com/walleai/walle-agent/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Respond(ctx context.Context, userID, message string, history []gemini.Message, lang string) string
	GetWallet(ctx context.Context, userID string) (*model.UserProfile, error)
	AddCard(ctx context.Context, userID string, card model.CreditCard) error
	UpdateCard(ctx context.Context, userID string, index int, card model.CreditCard) error
	DeleteCard(ctx context.Context, userID string, index int) error
	ResetDemo(ctx context.Context, userID string) (*model.UserProfile, error)
	AnalyzeBenefits(ctx context.Context, userID, lang string) []service.BenefitReminder
}

// Handler реализует HTTP-обработчики API агента Walle.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	UserID string `json:"user_id"`
}

// Login выполняет вход по e-mail и устанавливает cookie авторизации.
// Пароля нет: идентификатором пользователя служит нормализованный e-mail.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID := validation.NormalizeUserID(req.Email)
	h.authMiddleware.SetAuthCookie(w, userID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(loginResponse{UserID: userID}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetCards возвращает кошелёк текущего пользователя.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.logger.Error("get wallet error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeWallet(w, wallet)
}

type cardRequest struct {
	Bank     string `json:"bank"`
	Name     string `json:"name"`
	Network  string `json:"network"`
	LastFour string `json:"last_four"`
	OpenDate string `json:"open_date"`
}

// cardFromRequest валидирует запрос и собирает карту. Пустая платёжная
// система превращается в Unknown до проверки.
func cardFromRequest(req cardRequest) (model.CreditCard, int) {
	if req.Bank == "" || req.Name == "" {
		return model.CreditCard{}, http.StatusBadRequest
	}

	network := model.Network(req.Network)
	if network == "" {
		network = model.NetworkUnknown
	}
	if !validation.IsValidNetwork(network) {
		return model.CreditCard{}, http.StatusUnprocessableEntity
	}
	if !validation.IsValidLastFour(req.LastFour) {
		return model.CreditCard{}, http.StatusUnprocessableEntity
	}
	if !validation.IsValidOpenDate(req.OpenDate) {
		return model.CreditCard{}, http.StatusUnprocessableEntity
	}

	return model.CreditCard{
		Bank:     req.Bank,
		Name:     req.Name,
		Network:  network,
		LastFour: req.LastFour,
		OpenDate: req.OpenDate,
	}, 0
}

// AddCard добавляет карту в кошелёк текущего пользователя.
func (h *Handler) AddCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card, status := cardFromRequest(req)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := h.service.AddCard(r.Context(), userID, card); err != nil {
		h.logger.Error("add card error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respondWithWallet(w, r, userID, http.StatusCreated)
}

// UpdateCard перезаписывает карту по позиции в кошельке.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card, status := cardFromRequest(req)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := h.service.UpdateCard(r.Context(), userID, index, card); err != nil {
		if errors.Is(err, repository.ErrCardIndexOutOfRange) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update card error", zap.Error(err), zap.String("userID", userID), zap.Int("index", index))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respondWithWallet(w, r, userID, http.StatusOK)
}

// DeleteCard удаляет карту по позиции в кошельке.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCard(r.Context(), userID, index); err != nil {
		if errors.Is(err, repository.ErrCardIndexOutOfRange) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete card error", zap.Error(err), zap.String("userID", userID), zap.Int("index", index))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respondWithWallet(w, r, userID, http.StatusOK)
}

// ResetCards очищает кошелёк и заполняет его демонстрационными картами.
func (h *Handler) ResetCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	wallet, err := h.service.ResetDemo(r.Context(), userID)
	if err != nil {
		h.logger.Error("reset wallet error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeWallet(w, wallet)
}

type chatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type chatRequest struct {
	Message  string     `json:"message"`
	History  []chatTurn `json:"history"`
	Language string     `json:"language"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat отвечает на реплику пользователя. Ошибки LLM не превращаются в
// HTTP-ошибки: сервис сворачивает их в текст ответа.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	history := make([]gemini.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, gemini.Message{Role: turn.Role, Text: turn.Text})
	}

	reply := h.service.Respond(r.Context(), userID, req.Message, history, req.Language)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{Reply: reply}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type remindersRequest struct {
	Language string `json:"language"`
}

type reminderResponse struct {
	Card        string `json:"card"`
	Benefit     string `json:"benefit"`
	Deadline    string `json:"deadline"`
	Description string `json:"description"`
	GCalURL     string `json:"gcal_url"`
	ICS         string `json:"ics"`
}

// GetReminders возвращает напоминания об истекающих бенефитах вместе со
// ссылкой на Google Calendar и содержимым .ics-файла для каждого.
func (h *Handler) GetReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req remindersRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	reminders := h.service.AnalyzeBenefits(r.Context(), userID, req.Language)
	if len(reminders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]reminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		title := rem.Card + ": " + rem.Benefit
		resp = append(resp, reminderResponse{
			Card:        rem.Card,
			Benefit:     rem.Benefit,
			Deadline:    rem.Deadline,
			Description: rem.Description,
			GCalURL:     calendar.GoogleCalendarURL(title, rem.Description, rem.Deadline),
			ICS:         calendar.ICSContent(title, rem.Description, rem.Deadline),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// respondWithWallet отдаёт актуальный кошелёк после мутации.
func (h *Handler) respondWithWallet(w http.ResponseWriter, r *http.Request, userID string, status int) {
	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.logger.Error("get wallet error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(wallet); err != nil {
		h.logger.Error("encode wallet error", zap.Error(err))
	}
}

func (h *Handler) writeWallet(w http.ResponseWriter, wallet *model.UserProfile) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wallet); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
