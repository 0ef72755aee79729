package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplus/internal/api/problem"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/Togather-Foundation/eventplus/internal/i18n"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Responder renders JSON bodies and maps domain errors to localised problem
// documents. Every handler shares one.
type Responder struct {
	Env        string
	Translator *i18n.Translator
	validate   *validator.Validate
}

func NewResponder(env string, translator *i18n.Translator) *Responder {
	return &Responder{
		Env:        env,
		Translator: translator,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WriteError is the single place where errors become HTTP responses.
func (rs *Responder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()

	title := string(code)
	detail := ""
	if rs.Translator != nil {
		lang := rs.Translator.Match(r.Header.Get("Accept-Language"))
		title, detail = rs.Translator.Problem(lang, string(code))
		w.Header().Set("Content-Language", lang.String())
		w.Header().Add("Vary", "Accept-Language")
	}

	if rs.Env == "development" || rs.Env == "test" {
		detail = err.Error()
	}
	doc := problem.New(status, string(code), title).WithDetail(detail)
	if status < http.StatusInternalServerError {
		doc.WithErrors(apperrors.GetMetadata(err))
	}
	if code == apperrors.CodeUnauthenticated || code == apperrors.CodeInvalidCredentials {
		w.Header().Set("WWW-Authenticate", `Bearer realm="eventplus"`)
	}

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("code", string(code)).Int("status", status).Msg("request failed")

	doc.Write(w, r)
}

// decode reads a JSON body into dst and runs struct validation.
func (rs *Responder) decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)).
				WithMetadata("field", "body", "rule", "max_bytes")
		}
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidJSON, "request body is empty")
		}
		return apperrors.Wrap(apperrors.CodeInvalidJSON, "request body is not valid JSON", err)
	}
	if err := rs.validate.Struct(dst); err != nil {
		return apperrors.FromValidation(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// principal returns the caller, or the zero principal for anonymous requests.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
