package api

import "encoding/json"

// ObjectsResponse ответ на GET /api/v1/boards/{board}/objects/{kind}
type ObjectsResponse struct {
	Objects []json.RawMessage `json:"objects"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
