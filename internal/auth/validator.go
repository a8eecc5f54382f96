package auth

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Credentials is the payload of an auth request.
type Credentials struct {
	Name     string `validate:"required,max=64"`
	Password string `validate:"required,max=128"`
}

type channelName struct {
	Name string `validate:"required,max=128"`
}

// ValidateCredentials checks the shape of a name/password pair. It says
// nothing about whether the password is correct.
func ValidateCredentials(name, password string) error {
	return validate.Struct(Credentials{Name: name, Password: password})
}

// ValidateChannelName rejects empty and oversized channel names.
func ValidateChannelName(name string) error {
	return validate.Struct(channelName{Name: name})
}
