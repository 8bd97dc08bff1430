package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cardledger/internal/model"
	"cardledger/internal/service"
)

// CardHandler handles card endpoints.
type CardHandler struct {
	cardService service.CardService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCardRequest represents a card creation request.
type CreateCardRequest struct {
	Name    string  `json:"name" validate:"required"`
	Color   string  `json:"color" validate:"required"`
	Balance *Amount `json:"balance" swaggertype:"number"`
	Order   *int    `json:"order"`
}

// LedgerEntryRequest represents one operation inside an update request.
type LedgerEntryRequest struct {
	Amount      Amount     `json:"amount" swaggertype:"number"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
}

// UpdateCardRequest represents a partial card update. Absent fields are left untouched.
type UpdateCardRequest struct {
	Name          *string              `json:"name"`
	Color         *string              `json:"color"`
	Balance       *Amount              `json:"balance" swaggertype:"number"`
	Operations    []LedgerEntryRequest `json:"operations"`
	LastOperation *LedgerEntryRequest  `json:"lastOperation"`
	Order         *int                 `json:"order"`
}

func (r LedgerEntryRequest) toEntry() model.LedgerEntry {
	entry := model.LedgerEntry{Amount: r.Amount.Decimal, Description: r.Description}
	if r.Date != nil {
		entry.Date = r.Date.UTC()
	}
	return entry
}

func (r UpdateCardRequest) toPatch() model.CardPatch {
	patch := model.CardPatch{
		Name:    r.Name,
		Color:   r.Color,
		Balance: r.Balance.decimalPtr(),
		Order:   r.Order,
	}
	if r.Operations != nil {
		patch.Operations = make([]model.LedgerEntry, len(r.Operations))
		for i, op := range r.Operations {
			patch.Operations[i] = op.toEntry()
		}
	}
	if r.LastOperation != nil {
		entry := r.LastOperation.toEntry()
		patch.LastOperation = &entry
	}
	return patch
}

// List godoc
// @Summary List the caller's cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Card
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards [get]
func (h *CardHandler) List(c echo.Context) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return respondError(err)
	}

	cards, err := h.cardService.ListForOwner(c.Request().Context(), owner)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, cards)
}

// Create godoc
// @Summary Create a card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCardRequest true "Card data"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) Create(c echo.Context) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return respondError(err)
	}

	var req CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(err)
	}

	input := service.CreateCardInput{Name: req.Name, Color: req.Color, Order: req.Order}
	if req.Balance != nil {
		input.Balance = req.Balance.Decimal
	}

	card, err := h.cardService.Create(c.Request().Context(), owner, input)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusCreated, card)
}

// Update godoc
// @Summary Update a card
// @Description Only supplied fields change. Supplying operations replaces the history and recomputes the balance; supplying balance alone appends a correction entry.
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body UpdateCardRequest true "Fields to change"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id} [put]
func (h *CardHandler) Update(c echo.Context) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return respondError(err)
	}
	id, err := cardIDParam(c)
	if err != nil {
		return respondError(err)
	}

	var req UpdateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(err)
	}

	card, err := h.cardService.Update(c.Request().Context(), owner, id, req.toPatch())
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, card)
}

// Delete godoc
// @Summary Delete a card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id} [delete]
func (h *CardHandler) Delete(c echo.Context) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return respondError(err)
	}
	id, err := cardIDParam(c)
	if err != nil {
		return respondError(err)
	}

	if err := h.cardService.Delete(c.Request().Context(), owner, id); err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "card deleted", ID: id.String()})
}
