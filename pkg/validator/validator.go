package validator

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// TagMailAddr validates a string field with the permissive recipient address check.
const TagMailAddr = "mailaddr"

var (
	v *validator.Validate
)

func init() {
	v = validator.New()
	if err := v.RegisterValidation(TagMailAddr, mailAddr); err != nil {
		panic(err)
	}
}

func Validate(i interface{}) error {
	if i == nil {
		return fmt.Errorf("data to validate is nil")
	}

	return v.Struct(i)
}

func mailAddr(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}

	return recipient.IsPlausibleAddress(field.String())
}
