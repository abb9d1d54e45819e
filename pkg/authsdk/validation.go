package authsdk

import (
	"errors"
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
)

// notBlank rejects strings made of whitespace only.
var notBlank = validation.By(func(value any) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return validation.NewError("validation_not_blank", "must not be blank")
	}
	return nil
})

// Validate checks the login body is complete. Password rules are not
// applied here: an old password that predates the policy still logs in.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email,
			validation.Required,
			notBlank,
			validation.Length(3, 255),
			is.EmailFormat,
		),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(1, 128),
		),
	)
}

// Validate checks a refresh token was sent.
func (r *RefreshRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken, validation.Required, notBlank),
	)
}

// Validate checks both passwords were sent. Complexity is decided by the
// server so the answer can list every broken rule.
func (r *ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(1, 128)),
	)
}

// ValidationDetails flattens a validation error into field messages. It
// returns nil for errors that did not come from Validate.
func ValidationDetails(err error) map[string]string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string]string, len(errs))
	for field, e := range errs {
		out[field] = e.Error()
	}
	return out
}
