package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Cause   string      `json:"cause,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondKindError writes a failed envelope carrying the error kind and cause.
func RespondKindError(c *gin.Context, code int, kind, cause, message string) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: message,
		Kind:    kind,
		Cause:   cause,
	})
}
