package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Login   string `json:"login" validate:"required,max=10,username"`
	Mail    string `json:"mail" validate:"omitempty,email"`
	Secret  string `json:"secret" validate:"min=4"`
	Confirm string `json:"confirm" validate:"eqfield=Secret"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(signup{Login: "a.b@c+d-e", Secret: "abcd", Confirm: "abcd"}, nil))

	err := ValidateStruct(signup{Login: "no spaces", Mail: "x", Secret: "ab", Confirm: "cd"}, nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"login":   "failed username validation",
		"mail":    "must be a valid email address",
		"secret":  "must be at least 4",
		"confirm": "must match Secret",
	}, verr.Fields)

	// field.tag beats field, which beats the default text
	err = ValidateStruct(signup{Login: "waytoolongname", Secret: "ab", Confirm: "ab"}, map[string]string{
		"login.max": "too long",
		"login":     "bad login",
		"secret":    "weak",
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"login": "too long", "secret": "weak"}, verr.Fields)

	err = ValidateStruct(signup{Secret: "abcd", Confirm: "abcd"}, map[string]string{"login.max": "too long"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "this field is required", verr.Fields["login"])
}
