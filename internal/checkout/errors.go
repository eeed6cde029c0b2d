package checkout

import "net/http"

type ErrorCode string

const (
	ErrCodeCartEmpty               ErrorCode = "CART_EMPTY"
	ErrCodeStorePaused             ErrorCode = "STORE_PAUSED"
	ErrCodeCustomerDetailsRequired ErrorCode = "CUSTOMER_DETAILS_REQUIRED"
	ErrCodeInvalidTransition       ErrorCode = "INVALID_TRANSITION"
	ErrCodeBusy                    ErrorCode = "CHECKOUT_BUSY"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

var (
	ErrCartEmpty               = newError(ErrCodeCartEmpty, "Your cart is empty", http.StatusBadRequest)
	ErrStorePaused             = newError(ErrCodeStorePaused, "Restaurant is currently paused. Please try again later.", http.StatusConflict)
	ErrCustomerDetailsRequired = newError(ErrCodeCustomerDetailsRequired, "Please enter your name and phone number", http.StatusBadRequest)
	ErrInvalidTransition       = newError(ErrCodeInvalidTransition, "This step is not available right now", http.StatusConflict)
	ErrBusy                    = newError(ErrCodeBusy, "Another checkout request is still processing", http.StatusConflict)
)
