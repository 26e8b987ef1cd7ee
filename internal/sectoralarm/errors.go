package sectoralarm

import "errors"

var (
	// ErrTokenNotFound is returned when the login page has no anti-forgery token field.
	ErrTokenNotFound = errors.New("could not find CSRF-token")
	// ErrLoginRejected is returned when the portal explicitly refuses the credentials.
	ErrLoginRejected = errors.New("login rejected")
	// ErrUnexpectedStatus is returned when the portal answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected http status")

	// ErrUnknownStatusKey marks a status panel field this package does not know about.
	ErrUnknownStatusKey = errors.New("unknown status key")
	// ErrUnparseableDate marks a portal date matching none of the known patterns.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrMalformedRow marks a log row that does not decompose into event, date and user.
	ErrMalformedRow = errors.New("malformed log row")
)
