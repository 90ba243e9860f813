package weather

import (
	"errors"
	"reflect"
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

// ValidateRecord checks the structural invariants of rec before it is stored.
// Every store calls it before writing.
func ValidateRecord(rec HistoryRecord) error {
	return toValidationError(validate.Struct(rec))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := "invalid value"
		switch fe.Tag() {
		case "required":
			msg = MsgMissingField
		case "gtefield":
			msg = "must not be before " + fe.Param()
		case "min", "max":
			msg = "out of range"
		}
		return NewValidationError(fe.Field(), msg)
	}
	return NewValidationError("", err.Error())
}
