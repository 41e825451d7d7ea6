package serverutils

import "github.com/gofiber/fiber/v2"

// ApiError is a typed error the handlers can return; the error middleware
// turns it into the right HTTP status.
type ApiError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(code int, message string) *ApiError {
	return &ApiError{Code: code, Message: message}
}

func SuccessResponse(message string, data interface{}) fiber.Map {
	return fiber.Map{
		"message": message,
		"data":    data,
	}
}

func ErrorResponse(message string) fiber.Map {
	return fiber.Map{
		"message": message,
	}
}
