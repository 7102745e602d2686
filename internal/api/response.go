package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"jobcompass/internal/api/middleware"
	"jobcompass/internal/errcode"
	"jobcompass/internal/store"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success    bool                `json:"success"`
	Data       any                 `json:"data"`
	Message    string              `json:"message"`
	Pagination *store.Pagination   `json:"pagination,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Error      string              `json:"error,omitempty"`
}

const debugErrorsKey = "debugErrors"

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondPage(c *gin.Context, data any, page store.Pagination, message string) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Message: message, Pagination: &page})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Data: nil, Message: message})
}


// respondError maps err onto the envelope. action completes the generic upstream message,
// e.g. "analyze the match" gives "Failed to analyze the match. Please try again later.".
func respondError(c *gin.Context, err error, action string) {
	var appErr *errcode.Error
	if !errors.As(err, &appErr) {
		middleware.LoggerFromContext(c).Error("request failed", zap.String("action", action), zap.Error(err))
		body := envelope{Message: "Internal server error"}
		if c.GetBool(debugErrorsKey) {
			body.Error = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	switch appErr.Kind {
	case errcode.KindValidation:
		c.JSON(http.StatusUnprocessableEntity, envelope{Message: "Validation Error", Errors: appErr.Fields})
	case errcode.KindNotFound:
		fail(c, http.StatusNotFound, appErr.Message)
	case errcode.KindConflict:
		fail(c, http.StatusConflict, appErr.Message)
	case errcode.KindUpstream, errcode.KindParse:
		middleware.LoggerFromContext(c).Error("upstream call failed",
			zap.String("action", action),
			zap.String("kind", appErr.Kind.String()),
			zap.Error(err),
		)
		body := envelope{Message: fmt.Sprintf("Failed to %s. Please try again later.", action)}
		if c.GetBool(debugErrorsKey) {
			body.Error = err.Error()
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		middleware.LoggerFromContext(c).Error("request failed", zap.String("action", action), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bindJSON decodes the body and runs the binding rules, answering 422 itself on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, bindingError(err), "read the request")
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings.
func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		respondError(c, bindingError(err), "read the request")
		return false
	}
	return true
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := errcode.FieldErrors{}
		for _, fe := range verrs {
			name := fieldName(fe)
			fields.Add(name, validationMessage(name, fe))
		}
		return fields.Err()
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return errcode.Invalid("body", "The request body is required.")
	case errors.As(err, &syntaxErr):
		return errcode.Invalid("body", "The request body must be valid JSON.")
	case errors.As(err, &typeErr):
		return errcode.Invalid(typeErr.Field, fmt.Sprintf("The %s field must be of type %s.", humanize(typeErr.Field), typeErr.Type.String()))
	}
	return errcode.Invalid("body", err.Error())
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wireName)
	}
}

// wireName reports struct fields by their json (or form) name.
func wireName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// fieldName turns "req.experience[0].title" into "experience.0.title".
// Embedded structs show up under their Go type name and are dropped.
func fieldName(fe validator.FieldError) string {
	ns := strings.NewReplacer("[", ".", "]", "").Replace(fe.Namespace())
	parts := strings.Split(ns, ".")
	out := parts[:0]
	for _, p := range parts[1:] {
		if strings.ToLower(p) != p {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func validationMessage(field string, fe validator.FieldError) string {
	label := humanize(field)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", label)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", label)
	case "url", "http_url":
		return fmt.Sprintf("The %s format is invalid.", label)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", label)
	case "min", "gte":
		if isNumeric(fe) {
			return fmt.Sprintf("The %s must be at least %s.", label, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s characters.", label, fe.Param())
	case "max", "lte":
		if isNumeric(fe) {
			return fmt.Sprintf("The %s may not be greater than %s.", label, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s characters.", label, fe.Param())
	case "gtefield":
		return fmt.Sprintf("The %s must be greater than or equal to %s.", label, humanize(fe.Param()))
	default:
		return fmt.Sprintf("The %s is invalid.", label)
	}
}

func isNumeric(fe validator.FieldError) bool {
	switch fe.Kind().String() {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return true
	}
	return false
}

func humanize(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
