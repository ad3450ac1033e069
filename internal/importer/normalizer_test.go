package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalHeader(t *testing.T) {
	assert.Equal(t, "matricula", CanonicalHeader(" Matrícula "))
	assert.Equal(t, "telefone de emergencia", CanonicalHeader("Telefone  de Emergência"))
	assert.Equal(t, "birth date", CanonicalHeader("birth_date"))
}

func TestNormalizeValidRow(t *testing.T) {
	cand, rowErr := Normalize(RawRow{Line: 2, Fields: map[string]string{
		"Nome Completo":          "  Maria   Silva ",
		"Email":                  "Maria@Example.com",
		"Matrícula":              "001-234",
		"Data de Nascimento":     "1990-12-31",
		"Telefone de Emergencia": " 11999998888 ",
	}}, Rules{ShortIDWidth: 6})
	require.Nil(t, rowErr)
	assert.Equal(t, 2, cand.Row)
	assert.Equal(t, "Maria Silva", cand.Name)
	assert.Equal(t, "maria@example.com", cand.Email)
	assert.Equal(t, "001234", cand.ShortID)
	assert.Equal(t, "11999998888", cand.Phone)
	require.NotNil(t, cand.BirthDate)
	assert.Equal(t, time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC), *cand.BirthDate)
}

func TestNormalizeEnglishAliases(t *testing.T) {
	cand, rowErr := Normalize(RawRow{Line: 3, Fields: map[string]string{
		"name":     "John",
		"e-mail":   "john@example.com",
		"short id": "000123",
		"phone":    "555",
	}}, Rules{})
	require.Nil(t, rowErr)
	assert.Equal(t, "John", cand.Name)
	assert.Equal(t, "000123", cand.ShortID)
	assert.Equal(t, "555", cand.Phone)
}

func TestNormalizeStructuralErrors(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		reason Reason
	}{
		{"missing name", map[string]string{"Email": "a@x.com"}, ReasonMissingField},
		{"blank email", map[string]string{"Nome Completo": "A", "Email": "   "}, ReasonMissingField},
		{"malformed email", map[string]string{"Nome Completo": "A", "Email": "not-an-email"}, ReasonInvalidEmail},
		{"email without dot", map[string]string{"Nome Completo": "A", "Email": "a@localhost"}, ReasonInvalidEmail},
		{"short matricula", map[string]string{"Nome Completo": "A", "Email": "a@x.com", "Matrícula": "123"}, ReasonInvalidShortID},
		{"letters only matricula", map[string]string{"Nome Completo": "A", "Email": "a@x.com", "Matrícula": "abc"}, ReasonInvalidShortID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, rowErr := Normalize(RawRow{Line: 7, Fields: tc.fields}, Rules{ShortIDWidth: 6})
			require.NotNil(t, rowErr)
			assert.Equal(t, tc.reason, rowErr.Reason)
			assert.Equal(t, 7, rowErr.Row)
			assert.Equal(t, tc.fields, rowErr.Data)
		})
	}
}

func TestNormalizeBirthDateFormats(t *testing.T) {
	want := time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"1990-12-31", "31/12/1990", "1990/12/31", "33238"} {
		cand, rowErr := Normalize(RawRow{Line: 2, Fields: map[string]string{
			"Nome Completo": "A", "Email": "a@x.com", "Data de Nascimento": raw,
		}}, Rules{})
		require.Nil(t, rowErr, raw)
		require.NotNil(t, cand.BirthDate, raw)
		assert.Equal(t, want, *cand.BirthDate, raw)
	}

	cand, rowErr := Normalize(RawRow{Line: 2, Fields: map[string]string{
		"Nome Completo": "A", "Email": "a@x.com", "Data de Nascimento": "sometime in May",
	}}, Rules{})
	require.Nil(t, rowErr)
	assert.Nil(t, cand.BirthDate)
}
