package httpdto

type Response[T any] struct {
	Success bool     `json:"success"`
	Data    T        `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(message string, code string, details ...string) Response[any] {
	return Response[any]{
		Success: false,
		Message: message,
		Code:    code,
		Errors:  details,
	}
}

// UpdatedResponse is returned by bulk read operations.
type UpdatedResponse struct {
	Updated int64 `json:"updated"`
}
