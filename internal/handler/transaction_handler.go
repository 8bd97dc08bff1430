package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cardledger/internal/service"
)

// TransactionHandler handles postings against a card.
type TransactionHandler struct {
	postingService service.PostingService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(postingService service.PostingService) *TransactionHandler {
	return &TransactionHandler{postingService: postingService}
}

// PostTransactionRequest represents a posting request.
type PostTransactionRequest struct {
	Amount      *Amount `json:"amount" validate:"required" swaggertype:"number"`
	Description string  `json:"description" validate:"required"`
}

// Post godoc
// @Summary Post a transaction to a card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body PostTransactionRequest true "Signed amount and description"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/transactions [post]
func (h *TransactionHandler) Post(c echo.Context) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return respondError(err)
	}
	id, err := cardIDParam(c)
	if err != nil {
		return respondError(err)
	}

	var req PostTransactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(err)
	}

	card, err := h.postingService.Post(c.Request().Context(), owner, id, req.Amount.Decimal, req.Description)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusCreated, card)
}
