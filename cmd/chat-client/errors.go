package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/Checker-Finance/chat-client/internal/api"
	"github.com/Checker-Finance/chat-client/internal/auth"
	"github.com/Checker-Finance/chat-client/internal/httpclient"
)

// loginError marks failures of an explicit login, where a 401 means bad credentials.
type loginError struct{ err error }

func (e loginError) Error() string { return e.err.Error() }
func (e loginError) Unwrap() error { return e.err }

type registerError struct{ err error }

func (e registerError) Error() string { return e.err.Error() }
func (e registerError) Unwrap() error { return e.err }

// userMessage turns an error into the line printed to the user.
func userMessage(err error) string {
	var le loginError
	var re registerError
	switch {
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.As(err, &le) && errors.Is(err, httpclient.ErrUnauthorized):
		return "invalid credentials"
	case errors.As(err, &re) && httpclient.StatusOf(err) == http.StatusBadRequest:
		return "username already exists"
	case errors.Is(err, httpclient.ErrTransport):
		return "server unreachable, try later"
	case errors.Is(err, auth.ErrAuthRequired),
		errors.Is(err, api.ErrNoAccessToken),
		errors.Is(err, httpclient.ErrUnauthorized):
		return "please log in"
	case httpclient.StatusOf(err) == http.StatusNotFound:
		return "not found"
	case httpclient.StatusOf(err) == http.StatusForbidden:
		return "access denied"
	case httpclient.StatusOf(err) != 0:
		return "request failed: " + err.Error()
	default:
		return "error: " + err.Error()
	}
}
