package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/ad/go-course-progress/internal/apperr"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag = "notblank"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report json names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(t ut.Translator) error {
			return t.Add(notBlankTag, "{0} must not be blank", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(notBlankTag, fe.Field())
			return msg
		},
	)
}

// validateRequest runs struct validation and maps failures to a
// ValidationError carrying one translated issue per field.
func validateRequest(op string, req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		issues := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, fe.Translate(translator))
		}
		return apperr.Validation(op, issues...)
	}
	return apperr.Validation(op, err.Error())
}
