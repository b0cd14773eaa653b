package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
	"github.com/iudanet/boardsync/internal/validation"
	"github.com/iudanet/boardsync/pkg/api"
)

const (
	maxSnapshotBody = 16 << 20
	maxObjectBody   = 1 << 20
	cleanupTimeout  = 30 * time.Second
)

// BoardStorage определяет интерфейс хранилища досок
type BoardStorage interface {
	GetSnapshot(ctx context.Context, boardID string) (*storage.Snapshot, error)
	PutSnapshot(ctx context.Context, boardID string, data []byte) (string, bool, error)
	ListObjects(ctx context.Context, boardID, kind string) ([]*storage.Object, error)
	CreateObject(ctx context.Context, obj *storage.Object) error
	PatchObject(ctx context.Context, boardID, kind, id string, patch json.RawMessage, check func(json.RawMessage) error) (*storage.Object, error)
	DeleteObject(ctx context.Context, boardID, kind, id string) error
	DeleteBoard(ctx context.Context, boardID string) error
}

// HistoryDropper забывает историю топиков доски
type HistoryDropper interface {
	DropHistory(boardID string)
}

// BoardHandler обслуживает REST хранилище доски: снимок штрихов и объекты
type BoardHandler struct {
	logger  *slog.Logger
	storage BoardStorage
	history HistoryDropper
}

// NewBoardHandler создает новый board handler. history может быть nil.
func NewBoardHandler(logger *slog.Logger, storage BoardStorage, history HistoryDropper) *BoardHandler {
	return &BoardHandler{
		logger:  logger,
		storage: storage,
		history: history,
	}
}

// Routes registers the board storage endpoints on r. r is expected to be
// mounted at /api/v1/boards and protected by the auth middleware.
func (h *BoardHandler) Routes(r *mux.Router) {
	r.HandleFunc("/{board}/snapshot", h.GetSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/{board}/snapshot", h.PutSnapshot).Methods(http.MethodPut)
	r.HandleFunc("/{board}/objects/{kind}", h.ListObjects).Methods(http.MethodGet)
	r.HandleFunc("/{board}/objects/{kind}", h.CreateObject).Methods(http.MethodPost)
	r.HandleFunc("/{board}/objects/{kind}/{id}", h.PatchObject).Methods(http.MethodPatch)
	r.HandleFunc("/{board}/objects/{kind}/{id}", h.DeleteObject).Methods(http.MethodDelete)
}

// authorize проверяет доску из пути и права токена.
// При ошибке ответ уже отправлен.
func (h *BoardHandler) authorize(w http.ResponseWriter, r *http.Request, write bool) (string, bool) {
	boardID := mux.Vars(r)["board"]
	if err := validation.ValidateBoardID(boardID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return "", false
	}

	claims, ok := GetClaims(r.Context())
	if !ok {
		h.logger.Error("Claims not found in context")
		sendError(h.logger, w, "missing credentials", http.StatusUnauthorized)
		return "", false
	}
	if !claims.AllowsBoard(boardID) {
		h.logger.Warn("Token is not valid for board", "user_id", claims.UserID, "board_id", boardID)
		sendError(h.logger, w, "token is not valid for this board", http.StatusForbidden)
		return "", false
	}
	if write && !claims.Role.CanEdit() {
		sendError(h.logger, w, "role "+string(claims.Role)+" may not modify the board", http.StatusForbidden)
		return "", false
	}
	return boardID, true
}

func objectKind(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (models.ObjectKind, bool) {
	kind := models.ObjectKind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		sendError(logger, w, "unknown object kind "+string(kind), http.StatusNotFound)
		return "", false
	}
	return kind, true
}

// GetSnapshot обрабатывает GET /api/v1/boards/{board}/snapshot
func (h *BoardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}

	snap, err := h.storage.GetSnapshot(r.Context(), boardID)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			sendError(h.logger, w, "board has no snapshot", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get snapshot", "board_id", boardID, "error", err)
		sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		return
	}

	etag := `"` + snap.Digest + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", snap.UpdatedAt.Format(http.TimeFormat))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(snap.Data); err != nil {
		h.logger.Debug("Failed to write snapshot", "board_id", boardID, "error", err)
	}
}

// PutSnapshot обрабатывает PUT /api/v1/boards/{board}/snapshot
// Снимок проверяется и сохраняется в каноничном виде
func (h *BoardHandler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}

	var snap models.Snapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBody)).Decode(&snap); err != nil {
		h.logger.Warn("Invalid snapshot body", "board_id", boardID, "error", err)
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if snap.Strokes == nil {
		snap.Strokes = []models.Stroke{}
	}
	for i, stroke := range snap.Strokes {
		if err := stroke.Validate(); err != nil {
			sendError(h.logger, w, fmt.Sprintf("stroke %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", "error", err)
		sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		return
	}

	digest, changed, err := h.storage.PutSnapshot(r.Context(), boardID, data)
	if err != nil {
		h.logger.Error("Failed to save snapshot", "board_id", boardID, "error", err)
		sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if changed {
		h.logger.Debug("Snapshot saved", "board_id", boardID, "strokes", len(snap.Strokes), "bytes", len(data))
	}

	w.Header().Set("ETag", `"`+digest+`"`)
	w.WriteHeader(http.StatusNoContent)
}

// ListObjects обрабатывает GET /api/v1/boards/{board}/objects/{kind}
func (h *BoardHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}
	kind, ok := objectKind(w, r, h.logger)
	if !ok {
		return
	}

	objects, err := h.storage.ListObjects(r.Context(), boardID, string(kind))
	if err != nil {
		h.logger.Error("Failed to list objects", "board_id", boardID, "kind", kind, "error", err)
		sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ObjectsResponse{Objects: make([]json.RawMessage, 0, len(objects))}
	for _, obj := range objects {
		resp.Objects = append(resp.Objects, obj.Data)
	}
	sendJSON(h.logger, w, resp, http.StatusOK)
}

// CreateObject обрабатывает POST /api/v1/boards/{board}/objects/{kind}
// Объект без id получает идентификатор сервера
func (h *BoardHandler) CreateObject(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	kind, ok := objectKind(w, r, h.logger)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObjectBody))
	if err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, data, err := normalizeObject(kind, boardID, body)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	obj := &storage.Object{ID: id, BoardID: boardID, Kind: string(kind), Data: data}
	if err := h.storage.CreateObject(r.Context(), obj); err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectExists):
			sendError(h.logger, w, "object "+id+" already exists", http.StatusConflict)
		case errors.Is(err, storage.ErrInvalidObject):
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Failed to create object", "board_id", boardID, "kind", kind, "error", err)
			sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Debug("Object created", "board_id", boardID, "kind", kind, "id", id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Failed to write object", "error", err)
	}
}

// PatchObject обрабатывает PATCH /api/v1/boards/{board}/objects/{kind}/{id}
// Изменяются только переданные поля, результат должен оставаться валидным
func (h *BoardHandler) PatchObject(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	kind, ok := objectKind(w, r, h.logger)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObjectBody))
	if err != nil || !json.Valid(body) {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	check := func(merged json.RawMessage) error {
		if _, _, err := normalizeObject(kind, boardID, merged); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidObject, err)
		}
		return nil
	}
	obj, err := h.storage.PatchObject(r.Context(), boardID, string(kind), id, body, check)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			sendError(h.logger, w, "object "+id+" not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrInvalidObject):
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Failed to patch object", "board_id", boardID, "kind", kind, "id", id, "error", err)
			sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		h.logger.Debug("Failed to write object", "error", err)
	}
}

// DeleteObject обрабатывает DELETE /api/v1/boards/{board}/objects/{kind}/{id}
func (h *BoardHandler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	kind, ok := objectKind(w, r, h.logger)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.storage.DeleteObject(r.Context(), boardID, string(kind), id); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			sendError(h.logger, w, "object "+id+" not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete object", "board_id", boardID, "kind", kind, "id", id, "error", err)
		sendError(h.logger, w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandlePublish is a hub publish hook. A board-deleted event wipes the
// stored board and the relay history.
func (h *BoardHandler) HandlePublish(boardID string, msg api.Message) {
	if msg.Topic != events.TopicBoard || msg.Event != events.EventBoardDeleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := h.storage.DeleteBoard(ctx, boardID); err != nil {
		h.logger.Error("Failed to delete board", "board_id", boardID, "error", err)
		return
	}
	if h.history != nil {
		h.history.DropHistory(boardID)
	}
	h.logger.Info("Board deleted", "board_id", boardID, "client_id", msg.ClientID)
}

// normalizeObject проверяет объект по его виду и возвращает id и
// каноничный JSON. Объект всегда привязывается к boardID.
func normalizeObject(kind models.ObjectKind, boardID string, raw []byte) (string, json.RawMessage, error) {
	var (
		obj interface{ Validate() error }
		id  string
	)
	switch kind {
	case models.KindNote:
		var n models.Note
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", nil, fmt.Errorf("invalid note: %w", err)
		}
		n.ID = assignID(n.ID)
		n.BoardID = boardID
		obj, id = n, n.ID
	case models.KindShape:
		var s models.Shape
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", nil, fmt.Errorf("invalid shape: %w", err)
		}
		s.ID = assignID(s.ID)
		s.BoardID = boardID
		obj, id = s, s.ID
	case models.KindTextBox:
		var t models.TextBox
		if err := json.Unmarshal(raw, &t); err != nil {
			return "", nil, fmt.Errorf("invalid text box: %w", err)
		}
		t.ID = assignID(t.ID)
		t.BoardID = boardID
		obj, id = t, t.ID
	default:
		return "", nil, fmt.Errorf("unknown object kind %q", kind)
	}

	if err := obj.Validate(); err != nil {
		return "", nil, err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return id, data, nil
}

func assignID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
