package render

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorEnvelope padroniza erros de validação: {"error":{"message":...}}.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody descreve a falha exposta ao cliente.
type ErrorBody struct {
	Message string `json:"message"`
}

// FaultEnvelope padroniza falhas internas: {"error":"..."}.
type FaultEnvelope struct {
	Error string `json:"error"`
}

// JSON escreve payload arbitrário com o status informado.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorMessage escreve {"error":{"message":...}}.
func ErrorMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorEnvelope{Error: ErrorBody{Message: message}})
}

// Fault escreve {"error":"..."}; usado para falhas 5xx.
func Fault(w http.ResponseWriter, status int, message string) {
	JSON(w, status, FaultEnvelope{Error: message})
}

// MethodNotAllowed responde 405 com o cabeçalho Allow.
func MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	ErrorMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
