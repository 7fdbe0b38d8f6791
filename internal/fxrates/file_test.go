package fxrates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
)

func TestDecode(t *testing.T) {
	snap, err := Decode(strings.NewReader(`
base: USD
as_of: 2026-10-01T00:00:00Z
rates:
  NGN: "1500"
  eur: "0.92"
`))
	require.NoError(t, err)

	assert.Equal(t, valueobject.USD, snap.Base)
	assert.Equal(t, 2026, snap.AsOf.Year())
	ngn, ok := snap.Rates.Rate(valueobject.NGN)
	require.True(t, ok)
	assert.Equal(t, "1500", ngn.String())
	eur, ok := snap.Rates.Rate(valueobject.EUR)
	require.True(t, ok)
	assert.Equal(t, "0.92", eur.String())
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"non usd base":     "base: EUR\nrates: {}\n",
		"unknown currency": "base: USD\nrates:\n  XXX: \"1\"\n",
		"bad number":       "base: USD\nrates:\n  NGN: \"lots\"\n",
		"zero rate":        "base: USD\nrates:\n  NGN: \"0\"\n",
		"unknown field":    "base: USD\nsource: ecb\nrates: {}\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_RepoSnapshot(t *testing.T) {
	snap, err := LoadFile("../../config/fx_rates.yaml")
	require.NoError(t, err)
	for _, c := range valueobject.SupportedCurrencies() {
		_, ok := snap.Rates.Rate(c)
		assert.True(t, ok, "нет курса для %s", c)
	}
}
