package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"cardledger/internal/auth"
	"cardledger/internal/errors"
)

// tokenContextKey is where the bearer middleware stores the parsed token.
const tokenContextKey = "user"

// respondError converts err into the JSON error body of its HTTP status.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// bindAndValidate decodes the request body into req and runs its validate tags.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.NewValidationError("", "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.NewValidationError(fieldErrs[0].Field(), "failed on the '"+fieldErrs[0].Tag()+"' rule")
		}
		return errors.NewValidationError("", err.Error())
	}
	return nil
}

// claimsFromContext returns the claims of the token accepted by the bearer middleware.
func claimsFromContext(c echo.Context) (*auth.Claims, error) {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok {
		return nil, errors.ErrMissingCredentials
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// ownerFromContext returns the authenticated owner identity.
func ownerFromContext(c echo.Context) (string, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// cardIDParam parses the :id path parameter. Malformed ids read as unknown cards.
func cardIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.ErrCardNotFound
	}
	return id, nil
}

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
