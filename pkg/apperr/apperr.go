// Package apperr holds the user-facing error taxonomy. None of these are
// retried; the caller corrects its input and submits again.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
)

// ValidationError reports required fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "please fill in all fields"
	}
	return "please fill in all fields: " + strings.Join(e.Fields, ", ")
}

type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("product id %q already exists, please use a unique id", e.ID)
}

// PriceError is returned when the sell price does not exceed the buy price.
type PriceError struct {
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("sell price %s must be greater than buy price %s", e.SellPrice, e.BuyPrice)
}

// NotAuthenticatedError means a protected view was reached without the
// session flag or name it needs. Redirect names the entry view.
type NotAuthenticatedError struct {
	Role     string
	Redirect string
}

func (e *NotAuthenticatedError) Error() string {
	return e.Role + " session required"
}

func IsValidation(err error) bool {
	var v *ValidationError
	var p *PriceError
	return errors.As(err, &v) || errors.As(err, &p)
}
