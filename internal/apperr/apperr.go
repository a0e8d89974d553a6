package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	Invalid  Kind = "invalid"
	Gateway  Kind = "gateway"
	NotFound Kind = "not_found"
	Internal Kind = "internal"
)

const genericMessage = "Unexpected error."

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the caller
	Fields    map[string]string // field-level validation detail
	Err       error             // internal cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func GatewayErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: Gateway, PublicMsg: publicMsg, Err: err}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

// Wrap reports an internal error as "Unexpected error: <message>". Stack traces stay in
// the logs.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: unexpected(err), Err: err}
}

func unexpected(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return genericMessage
	}
	return "Unexpected error: " + msg
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusUnprocessableEntity
		case Gateway:
			return http.StatusBadRequest
		case NotFound:
			return http.StatusNotFound
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	if err == nil {
		return genericMessage
	}
	return unexpected(err)
}
