package util

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/exam"
	"schoolapi/backend/internal/shared"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	examTypeTag  = "exam_type"
	examTypeText = "{0} must be one of cw1, cw2, midterm or final"
	clockTag     = "hhmm"
	clockText    = "{0} must be a time in HH:MM format"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Report JSON field names instead of Go struct names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(examTypeTag, func(fl validator.FieldLevel) bool {
		return exam.IsValidExamType(fl.Field().String())
	})
	registerTranslation(examTypeTag, examTypeText)

	_ = Validate.RegisterValidation(clockTag, func(fl validator.FieldLevel) bool {
		_, err := shared.ClockMinutes(fl.Field().String())
		return err == nil
	})
	registerTranslation(clockTag, clockText)
}

func registerTranslation(tag, text string) {
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors maps each failing JSON field to an English message
func TranslateErrors(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = fe.Translate(Translator)
	}
	return fields
}

// DecodeAndValidate reads a JSON body into dst and runs struct validation.
// Decoding problems come back as InvalidArgument; validation problems as
// validator.ValidationErrors, which HandleError turns into a field map.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return status.Error(codes.InvalidArgument, "request body is empty")
		}
		return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid JSON body: %v", err))
	}
	return Validate.Struct(dst)
}
