package client

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders v as US dollars with grouping, e.g. $10,000.00.
func FormatCurrency(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// Outcome is what a surface shows after one submission.
type Outcome struct {
	OK           bool    `json:"ok"`
	PredictedTax float64 `json:"predicted_tax,omitempty"`
	Formatted    string  `json:"formatted,omitempty"`
	Message      string  `json:"message"`
}

// Describe maps the result of Predict to the message shown to the user.
func (c *Client) Describe(tax float64, err error) Outcome {
	if err == nil {
		formatted := FormatCurrency(tax)
		return Outcome{
			OK:           true,
			PredictedTax: tax,
			Formatted:    formatted,
			Message:      "Predicted tax: " + formatted,
		}
	}
	return Outcome{Message: c.Message(err)}
}

// Message returns the user-facing text for err.
func (c *Client) Message(err error) string {
	var (
		transportErr *TransportError
		serviceErr   *ServiceError
	)
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput.Error()
	case errors.As(err, &serviceErr):
		return serviceErr.Message
	case errors.As(err, &transportErr):
		switch transportErr.Kind {
		case Unreachable:
			return fmt.Sprintf("The prediction service is not running. Please start the prediction service at %s.", c.baseURL)
		case Timeout:
			return "The request to the prediction service timed out."
		default:
			return fmt.Sprintf("An error occurred while contacting the prediction service: %v", transportErr.Err)
		}
	default:
		return fmt.Sprintf("An error occurred while contacting the prediction service: %v", err)
	}
}
