package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
)

type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// Provider errors can carry request URLs (and with them API keys) or upstream
// bodies; callers only see these fixed messages. The full chain is logged.
var externalMessages = map[apierr.Kind]string{
	apierr.KindGeocodeFailure:      "geocoding provider unavailable",
	apierr.KindIndicatorResolution: "indicator provider unavailable",
}

// writeError is the single place request failures become HTTP responses.
// Internal errors are logged by the caller and reported opaquely.
func writeError(c *gin.Context, err error) {
	ae := apierr.As(err)
	msg := "internal server error"
	code := string(ae.Kind)
	if ext, ok := externalMessages[ae.Kind]; ok {
		msg = ext
		code = "external_dependency"
	} else if ae.Kind.Public() {
		msg = ae.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ae.Kind.Status(), ErrorBody{Error: msg, Code: code, Field: ae.Field})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
