package serverutils

type SuccessResponseBody[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type ErrorResponseBody struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// SuccessResponse wraps data in the envelope used by admin style endpoints.
// Research resources are returned bare.
func SuccessResponse[T any](message string, data T) SuccessResponseBody[T] {
	return SuccessResponseBody[T]{Success: true, Code: 200, Message: message, Data: data}
}

func ErrorResponse(code int, message, errorType string) ErrorResponseBody {
	return ErrorResponseBody{Code: code, Message: message, ErrorType: errorType}
}
