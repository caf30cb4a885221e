package pages

import "errors"

var (
	// ErrExhausted indicates the operating system could not satisfy a reservation.
	ErrExhausted = errors.New("pages: address space or memory exhausted")

	// ErrBadRegion indicates a zero-sized or otherwise malformed region request.
	ErrBadRegion = errors.New("pages: bad region")

	// ErrNotResizable indicates the region cannot be resized by the backend and
	// the caller must fall back to reserve, copy and release.
	ErrNotResizable = errors.New("pages: region not resizable in place")
)
