package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput возвращается, если входные данные не прошли проверку.
var ErrInvalidInput = errors.New("invalid input")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("din", func(fl validator.FieldLevel) bool {
		return IsValidDIN(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// Struct проверяет структуру по тегам validate и возвращает ошибку ErrInvalidInput с перечнем полей.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, "; "))
}
