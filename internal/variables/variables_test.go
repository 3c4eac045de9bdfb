package variables

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var employmentDefs = []Definition{
	{Name: "employee_name", Type: TypeText, Required: true},
	{Name: "employee_email", Type: TypeEmail},
	{Name: "contract_value", Type: TypeNumber},
	{Name: "work_pass", Type: TypeSelect, Options: []string{"EP", "S Pass", "Citizen"}},
	{Name: "start_date", Type: TypeDate},
	{Name: "phone_number", Type: TypePhone},
}

func TestCheckAcceptsWellTypedValues(t *testing.T) {
	err := Check(employmentDefs, map[string]any{
		"employee_name":  "Tan Wei Ming",
		"employee_email": "tan@example.com",
		"contract_value": 1500,
		"work_pass":      "EP",
		"start_date":     "2024-03-15",
		"phone_number":   91234567,
		"extra_note":     map[string]any{"free": "form"},
	})
	assert.NoError(t, err)

	err = Check(employmentDefs, map[string]any{
		"employee_name":  "Tan",
		"employee_email": "",
		"contract_value": "SGD 1,500.00",
		"work_pass":      "",
	})
	assert.NoError(t, err)
}

func TestCheckMissingKeysAreNotRejected(t *testing.T) {
	assert.NoError(t, Check(employmentDefs, map[string]any{}))
	assert.NoError(t, Check(nil, map[string]any{"anything": []any{1}}))
}

func TestCheckRejectsMismatches(t *testing.T) {
	err := Check(employmentDefs, map[string]any{
		"employee_name":  map[string]any{"first": "Tan"},
		"employee_email": "not-an-email",
		"contract_value": "a lot",
		"work_pass":      "Tourist",
	})
	require.Error(t, err)

	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"contract_value", "employee_email", "employee_name", "work_pass"}, mismatch.Names())
	assert.Contains(t, err.Error(), "work_pass: must be one of: EP, S Pass, Citizen")
	assert.Contains(t, err.Error(), "contract_value: must be a number")
}

func TestBindOrdersDeclaredFirst(t *testing.T) {
	got := Bind(employmentDefs, map[string]any{
		"zeta":          "z",
		"start_date":    "2024-03-15",
		"employee_name": "Tan",
		"alpha":         1,
	})
	require.Len(t, got, 4)
	assert.Equal(t, TemplateVariable{Name: "employee_name", Value: "Tan", Type: TypeText}, got[0])
	assert.Equal(t, TemplateVariable{Name: "start_date", Value: "2024-03-15", Type: TypeDate}, got[1])
	assert.Equal(t, "alpha", got[2].Name)
	assert.Equal(t, "zeta", got[3].Name)
	assert.Equal(t, TypeText, got[3].Type)
}
