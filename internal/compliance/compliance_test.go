package compliance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalhelp/api/internal/normalize"
)

func TestValidateEachFieldIndependently(t *testing.T) {
	good := map[string]any{
		"nric_number":  "S1234567A",
		"uen_number":   "201912345K",
		"phone_number": "9123 4567",
	}
	bad := map[string]string{
		"nric_number":  "A1234567",
		"uen_number":   "12-34",
		"phone_number": "12345",
	}
	msgs := map[string]string{
		"nric_number":  MsgNRIC,
		"uen_number":   MsgUEN,
		"phone_number": MsgPhone,
	}

	res := Validate(good)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)

	for key, value := range bad {
		vars := map[string]any{}
		for k, v := range good {
			vars[k] = v
		}
		vars[key] = value
		res := Validate(vars)
		assert.False(t, res.IsValid, key)
		assert.Equal(t, []string{msgs[key]}, res.Errors, key)
	}
}

func TestValidateOrderAndAbsentKeys(t *testing.T) {
	res := Validate(map[string]any{
		"phone_number": "1",
		"uen_number":   "x",
		"nric_number":  "y",
	})
	assert.Equal(t, []string{MsgNRIC, MsgUEN, MsgPhone}, res.Errors)

	res = Validate(map[string]any{"nric_number": "", "uen_number": nil, "name": "Tan"})
	assert.True(t, res.IsValid)
	assert.Equal(t, "valid", res.Status())
}

func TestValidatePhoneCountsAllDigits(t *testing.T) {
	for _, phone := range []string{"+6591234567", "+65 9123 4567", "6591234567"} {
		res := Validate(map[string]any{"phone_number": phone})
		assert.False(t, res.IsValid, phone)
		assert.Equal(t, []string{MsgPhone}, res.Errors, phone)
	}
	for _, phone := range []string{"91234567", "9123-4567", "(9123) 4567"} {
		assert.True(t, Validate(map[string]any{"phone_number": phone}).IsValid, phone)
	}
}

func TestCheckWarnsOnPassedThroughFields(t *testing.T) {
	raw := map[string]any{
		"nric_number":     "bad-value",
		"phone_number":    "9123 4567",
		"start_date":      "someday",
		"contract_value":  "lots",
		"blank_date":      "",
		"candidate_name":  "Tan Wei Ming",
		"last_updated_by": "admin",
	}
	res := Check(raw, normalize.Variables(raw))
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{MsgNRIC}, res.Errors)
	assert.Equal(t, []string{
		"contract_value could not be formatted and was used as submitted",
		"start_date could not be formatted and was used as submitted",
	}, res.Warnings)
}

func TestIsDateKey(t *testing.T) {
	for _, key := range []string{"date", "start_date", "date_of_birth", "effective_date_sg"} {
		assert.True(t, normalize.IsDateKey(key), key)
	}
	for _, key := range []string{"candidate_name", "last_updated_by", "dates", "update"} {
		assert.False(t, normalize.IsDateKey(key), key)
	}
}

func TestPolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Advisory, p)
	p, err = ParsePolicy(" STRICT ")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	_, err = ParsePolicy("lenient")
	assert.Error(t, err)

	invalid := Result{IsValid: false, Errors: []string{MsgPhone}}
	assert.NoError(t, Advisory.Enforce(invalid))
	assert.NoError(t, Strict.Enforce(Result{IsValid: true}))

	err = Strict.Enforce(invalid)
	var verr *ViolationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgPhone}, verr.Errors)
}
