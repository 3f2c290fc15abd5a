package handler // handler defines http handlers

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// errNoIdentity is returned by getUserID when the JWT middleware did not
// run or did not store a subject.
var errNoIdentity = errors.New("no authenticated user in context")

// getUserID extracts the authenticated user's id placed into the context
// by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := c.Get("user_id").(uint64); ok && id != 0 {
		return id, nil
	}
	return 0, errNoIdentity
}
