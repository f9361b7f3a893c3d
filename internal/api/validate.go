package api

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks req against its validate tags and writes a 400
// listing every failing field. It reports whether req is valid.
func validateRequest(w http.ResponseWriter, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: %v", err)
		return false
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, len(names))
	for i, name := range names {
		msgs[i] = name + ": " + fields[name]
	}

	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": "invalid request: " + strings.Join(msgs, "; "),
			"type":    "invalid_request_error",
			"fields":  fields,
		},
	})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too small (min: " + fe.Param() + ")"
	case "max":
		return "value is too large (max: " + fe.Param() + ")"
	case "gte":
		return "value must be at least " + fe.Param()
	case "lte":
		return "value must be at most " + fe.Param()
	default:
		return "invalid value"
	}
}
