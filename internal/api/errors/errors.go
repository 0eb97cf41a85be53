// Пакет errors — ответы об ошибках endpoints Preservation Module.
// Формат: {"error": {"code": "...", "message": "..."}}.
// Receiver вебхука отвечает в собственном формате {"message", "status"}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок из OpenAPI контракта.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// codeByStatus — машиночитаемый код для каждого используемого HTTP-статуса.
var codeByStatus = map[int]string{
	http.StatusBadRequest:          CodeValidationError,
	http.StatusNotFound:            CodeNotFound,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusMethodNotAllowed:    CodeMethodNotAllowed,
	http.StatusInternalServerError: CodeInternalError,
}

// Response — тело ответа об ошибке.
type Response struct {
	Error Detail `json:"error"`
}

// Detail — код и описание ошибки.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write записывает ошибку со статусом status.
// Статус без собственного кода получает INTERNAL_ERROR.
func Write(w http.ResponseWriter, status int, message string) {
	code, ok := codeByStatus[status]
	if !ok {
		code = CodeInternalError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: Detail{Code: code, Message: message}})
}

// ValidationError — 400.
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, message)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, message)
}

// Unauthorized — 401.
func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, http.StatusUnauthorized, message)
}

// Forbidden — 403.
func Forbidden(w http.ResponseWriter, message string) {
	Write(w, http.StatusForbidden, message)
}

// MethodNotAllowed — 405.
func MethodNotAllowed(w http.ResponseWriter, message string) {
	Write(w, http.StatusMethodNotAllowed, message)
}

// InternalError — 500.
func InternalError(w http.ResponseWriter, message string) {
	Write(w, http.StatusInternalServerError, message)
}
