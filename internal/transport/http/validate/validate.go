// Package validate registers the custom binding tags used by request structs.
package validate

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

var zipRe = regexp.MustCompile(`^[0-9]{5}$`)

// Register 挂载 zipcode / phone 两个校验 tag；region 为空时默认 FR
func Register(region string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validate: unexpected engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v, region)
}

func RegisterOn(v *validator.Validate, region string) error {
	if region == "" {
		region = "FR"
	}
	if err := v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipRe.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return Phone(fl.Field().String(), region)
	})
}

// Phone 号码能被解析且对 region 有效
func Phone(s, region string) bool {
	num, err := phonenumbers.Parse(s, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}
