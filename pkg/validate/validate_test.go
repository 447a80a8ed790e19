package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type deployRequest struct {
	Domain string `json:"domain" validate:"required,projectname"`
}

func TestStructReportsJSONFieldName(t *testing.T) {
	v := New()

	err := v.Struct(registerRequest{})
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
	assert.Equal(t, "email is required", fe.Message)

	err = v.Struct(registerRequest{Email: "not-an-email"})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Tag)

	assert.NoError(t, v.Struct(registerRequest{Email: "dev@example.com"}))
}

func TestProjectName(t *testing.T) {
	v := New()
	for _, name := range []string{"site", "my-site.v2", "a_b", "0day"} {
		assert.NoError(t, v.Struct(deployRequest{Domain: name}), name)
	}
	for _, name := range []string{"My-Site", "-lead", "a---b", "with space", "slash/name"} {
		assert.Error(t, v.Struct(deployRequest{Domain: name}), name)
	}
}

func TestVarUsername(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("username", "user_ab12cd34", "required,username"))

	err := v.Var("username", "x", "required,username")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "username", fe.Field)
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("someone@example.org"))
	assert.False(t, IsEmail("someone"))
	assert.False(t, IsEmail(""))
}

func TestIsEmailReusesValidator(t *testing.T) {
	IsEmail("warm@example.org")
	allocs := testing.AllocsPerRun(50, func() {
		IsEmail("someone@example.org")
	})
	// a fresh validator.New costs hundreds of allocations
	assert.Less(t, allocs, float64(100))
}
