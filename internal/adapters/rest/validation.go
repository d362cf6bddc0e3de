package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// bindAndValidate binds the JSON body into out and runs struct validation.
// On failure it writes a 400 envelope and returns the error so the handler
// can stop.
func bindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, envelope{
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		msgs := validationMessages(err)
		c.JSON(http.StatusBadRequest, envelope{
			Message: "Validation error",
			Error:   strings.Join(msgs, "; "),
			Errors:  msgs,
		})
		return err
	}
	return nil
}

// fieldMessages holds the client-facing text per struct field and failed tag.
var fieldMessages = map[string]string{
	"CustomerEmail.required": "Customer email is required",
	"CustomerEmail.email":    "Customer email must be a valid email address",
	"CustomerEmail.max":      "Customer email cannot exceed 255 characters",
	"CustomerName.required":  "Customer name is required",
	"CustomerName.max":       "Customer name cannot exceed 200 characters",
	"Items.required":         "Order must contain at least one item",
	"Items.min":              "Order must contain at least one item",
	"ProductID.required":     "Product ID is required",
	"Quantity.gt":            "Quantity must be greater than 0",
	"Quantity.lte":           "Quantity cannot exceed 100",
}

// validationMessages lists one message per failed field, in field order.
func validationMessages(err error) []string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(ve))
	seen := make(map[string]bool, len(ve))
	for _, fe := range ve {
		msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fe.Namespace() + " is invalid"
		}
		if seen[msg] {
			continue
		}
		seen[msg] = true
		msgs = append(msgs, msg)
	}
	return msgs
}
