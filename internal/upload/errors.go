package upload

import (
	"errors"
	"net/http"
)

// Kind classifica falhas do fluxo de upload; cada ponto de falha tem o seu.
type Kind string

const (
	KindMethodNotAllowed  Kind = "MethodNotAllowed"
	KindMissingKey        Kind = "MissingKey"
	KindMissingCredential Kind = "MissingCredential"
	KindRelayFailure      Kind = "RelayFailure"
	KindDispatchFailure   Kind = "DispatchFailure"
	KindInternalError     Kind = "InternalError"
)

const (
	msgMethodNotAllowed  = "Method Not Allowed"
	msgMissingKey        = "Missing x-file-name header"
	msgMissingCredential = "Missing GHP_TOKEN environment variable"
)

// Error é a falha tipada devolvida pelo pipeline.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status devolve o código HTTP associado ao tipo.
func (e *Error) Status() int {
	switch e.Kind {
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindMissingKey:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extrai o tipo de qualquer erro; desconhecidos viram InternalError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return KindInternalError
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func asUploadError(err error) *Error {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr
	}
	return newError(KindInternalError, err.Error(), err)
}
