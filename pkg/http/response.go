package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON body.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ListDataResponse wraps a list with its unpaged size.
type ListDataResponse struct {
	Rows  any `json:"rows"`
	Total int `json:"total"`
}

// DataResponse writes data inside the envelope with the given status.
func DataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func ListResponse(c echo.Context, rows any, total int) error {
	return SuccessResponse(c, &ListDataResponse{Rows: rows, Total: total})
}

func CreatedResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusCreated, data)
}

func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

func NotFoundResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusNotFound, data)
}

func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse writes an *AppError with its own status and anything
// else as a 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
