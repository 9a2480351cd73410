package service

import "net/http"

// Error is a client-facing failure with a fixed HTTP mapping. Anything else
// escaping the service layer is treated as an internal fault by the handlers.
type Error struct {
	Kind    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func badRequest(msg string) *Error {
	return &Error{Kind: "bad_request", Message: msg, Status: http.StatusBadRequest}
}

func unauthorized(msg string) *Error {
	return &Error{Kind: "unauthorized", Message: msg, Status: http.StatusUnauthorized}
}

func forbidden(msg string) *Error {
	return &Error{Kind: "forbidden", Message: msg, Status: http.StatusForbidden}
}

func notFound(msg string) *Error {
	return &Error{Kind: "not_found", Message: msg, Status: http.StatusNotFound}
}

func conflict(msg string) *Error {
	return &Error{Kind: "conflict", Message: msg, Status: http.StatusConflict}
}
