package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug" validate:"omitempty,slug"`
	Template string `json:"template" validate:"max=8"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{Name: "About us", Slug: "about-us", Template: "default"}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{Name: "", Slug: "About Us", Template: "a-very-long-template"}

	err := ValidateStruct(payload)
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "required", fields["name"])
	require.Equal(t, "slug", fields["slug"])
	require.Equal(t, "max", fields["template"])
}

func TestIsSlug(t *testing.T) {
	require.True(t, IsSlug("home"))
	require.True(t, IsSlug("about-us-2"))
	require.False(t, IsSlug("About"))
	require.False(t, IsSlug("about--us"))
	require.False(t, IsSlug("-about"))
	require.False(t, IsSlug(""))
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("menukey", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "main"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"menukey"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "main"}))
	require.Error(t, ValidateStruct(custom{Value: "footer"}))
}
