package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storytime/internal/service"
)

var statusByKind = map[service.Kind]int{
	service.KindBadRequest:   http.StatusBadRequest,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindConflict:     http.StatusConflict,
	service.KindNotFound:     http.StatusNotFound,
	service.KindServerError:  http.StatusInternalServerError,
}

// writeError renders err as {"message": ...}. Internal causes are logged,
// never returned.
func (h *Handler) writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		svcErr = &service.Error{Kind: service.KindServerError, Message: "Something went wrong, please try again later.", Err: err}
	}

	status, ok := statusByKind[svcErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.logger.WithField("route", c.FullPath()).WithError(svcErr.Err).Error(svcErr.Message)
	}

	c.JSON(status, gin.H{"message": svcErr.Message})
}
