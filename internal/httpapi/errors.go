package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sso312/querylens/internal/apperr"
)

// writeAppErr maps an error to the HTTP status spec §7 calls for, surfacing
// the {errorClass, queryHash, elapsedMs, timeoutMs} fields an AppError
// carries when present.
func writeAppErr(c *gin.Context, err error) {
	class := apperr.ClassOf(err)
	status := apperr.HTTPStatus(class)

	body := gin.H{"error": err.Error(), "errorClass": string(class)}
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Fields {
			body[k] = v
		}
	}
	c.JSON(status, body)
}
