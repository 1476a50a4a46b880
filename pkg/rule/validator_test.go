package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/internal/types"
	"github.com/yeisme/carevault/pkg/rule"
)

func TestEngineUsesRuleTag(t *testing.T) {
	type tagged struct {
		Name string `rule:"required" validate:"max=1"`
	}

	require.NotNil(t, rule.Engine())
	require.Error(t, rule.ValidateStruct(tagged{}))
	require.NoError(t, rule.ValidateStruct(tagged{Name: "longer than one"}))
}

func TestIngestInputRules(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name string
		in   service.IngestInput
		ok   bool
	}{
		{"valid", service.IngestInput{PatientID: "42", PatientName: "Alice", Department: "oncology"}, true},
		{"padded id", service.IngestInput{PatientID: " 7 ", PatientName: "Bob"}, true},
		{"negative id", service.IngestInput{PatientID: "-3", PatientName: "Bob"}, true},
		{"missing id", service.IngestInput{PatientName: "Bob"}, false},
		{"non numeric id", service.IngestInput{PatientID: "P-7", PatientName: "Bob"}, false},
		{"id overflows", service.IngestInput{PatientID: "99999999999999999999", PatientName: "Bob"}, false},
		{"missing name", service.IngestInput{PatientID: "1"}, false},
		{"name too long", service.IngestInput{PatientID: "1", PatientName: string(long)}, false},
		{"department too long", service.IngestInput{PatientID: "1", PatientName: "Bob", Department: string(long[:51])}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := rule.ValidateStruct(&tc.in)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestListLogsQueryRules(t *testing.T) {
	assert.NoError(t, rule.ValidateStruct(&types.ListLogsQuery{}))
	assert.NoError(t, rule.ValidateStruct(&types.ListLogsQuery{PatientID: "12", Limit: 500, Offset: 10}))
	assert.Error(t, rule.ValidateStruct(&types.ListLogsQuery{Limit: 501}))
	assert.Error(t, rule.ValidateStruct(&types.ListLogsQuery{Offset: -1}))
	assert.Error(t, rule.ValidateStruct(&types.ListLogsQuery{PatientID: "abc"}))
}

func TestAppConfigRules(t *testing.T) {
	cfg := configs.Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.KV.Type = "etcd"
	assert.ErrorContains(t, bad.Validate(), "KV.Type must be one of")

	bad = cfg
	bad.Vault.KeyCustody = "hsm"
	assert.ErrorContains(t, bad.Validate(), "Vault.KeyCustody")

	bad = cfg
	bad.Log.Format = "xml"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.CircuitBreaker.FailureRate = 1.5
	assert.Error(t, bad.Validate())
}

func TestExplain(t *testing.T) {
	err := rule.ValidateStruct(&service.IngestInput{PatientID: "x"})
	require.Error(t, err)

	explained := rule.Explain(err)

	var fields rule.ValidationErrors
	require.ErrorAs(t, explained, &fields)
	assert.Equal(t, "must be an integer patient id", fields["IngestInput.PatientID"])
	assert.Equal(t, "is required", fields["IngestInput.PatientName"])
	assert.Equal(t,
		"IngestInput.PatientID must be an integer patient id; IngestInput.PatientName is required",
		explained.Error())

	plain := assert.AnError
	assert.Same(t, plain, rule.Explain(plain))
}

func TestRegisterValidationAndAlias(t *testing.T) {
	require.NoError(t, rule.RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	}))
	assert.NoError(t, rule.ValidateVar("ward", "even_length"))
	assert.Error(t, rule.ValidateVar("wards", "even_length"))

	rule.RegisterAlias("short_code", "required,max=4")
	assert.NoError(t, rule.ValidateVar("ICU", "short_code"))
	assert.Error(t, rule.ValidateVar("", "short_code"))

	assert.NoError(t, rule.ValidateVar("Cardiology", "department"))
}
