package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/hub"
	"github.com/iudanet/boardsync/internal/validation"
)

// Attacher регистрирует подключения в relay
type Attacher interface {
	Attach(boardID, clientID string, role models.Role) *hub.Conn
}

// WSHandler переводит запрос в WebSocket соединение с relay доски
type WSHandler struct {
	logger   *slog.Logger
	hub      Attacher
	upgrader websocket.Upgrader
}

// NewWSHandler создает новый WebSocket handler
func NewWSHandler(logger *slog.Logger, h Attacher) *WSHandler {
	return &WSHandler{
		logger: logger,
		hub:    h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Токен передается в заголовке Authorization, cookie не используются
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve обрабатывает GET /api/v1/boards/{board}/ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["board"]
	if err := validation.ValidateBoardID(boardID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	claims, ok := GetClaims(r.Context())
	if !ok {
		h.logger.Error("Claims not found in context")
		sendError(h.logger, w, "missing credentials", http.StatusUnauthorized)
		return
	}
	if !claims.AllowsBoard(boardID) {
		h.logger.Warn("Token is not valid for board", "user_id", claims.UserID, "board_id", boardID)
		sendError(h.logger, w, "token is not valid for this board", http.StatusForbidden)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже ответил клиенту
		h.logger.Warn("Failed to upgrade connection", "board_id", boardID, "error", err)
		return
	}

	conn := h.hub.Attach(boardID, r.URL.Query().Get("client_id"), claims.Role)
	h.logger.Info("Client connected", "board_id", boardID, "client_id", conn.ClientID(),
		"user_id", claims.UserID, "role", claims.Role)
	conn.Serve(ws)
	h.logger.Info("Client disconnected", "board_id", boardID, "client_id", conn.ClientID())
}
