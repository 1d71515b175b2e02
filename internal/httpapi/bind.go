package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
)

var registerFieldNames sync.Once

// useJSONFieldNames makes validator report fields by their JSON names.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes and validates the body into dst, returning a validation
// error that names the offending field.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var (
		verrs    validator.ValidationErrors
		typeErr  *json.UnmarshalTypeError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs) && len(verrs) > 0:
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apierr.Validation(fe.Field(), "%s is required", fe.Field())
		case "gte", "lte", "min", "max":
			return apierr.Validation(fe.Field(), "%s is out of range", fe.Field())
		default:
			return apierr.Validation(fe.Field(), "%s is invalid", fe.Field())
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return apierr.Validation("", "request body must be a JSON object")
		}
		return apierr.Validation(field, "%s must be of type %s", field, typeErr.Type.String())
	case errors.As(err, &maxBytes):
		return apierr.Validation("", "request body is too large")
	case errors.Is(err, io.EOF):
		return apierr.Validation("", "request body is required")
	default:
		return apierr.Validation("", "request body must be valid JSON")
	}
}
