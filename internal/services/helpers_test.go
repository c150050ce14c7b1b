package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalePolicyNegotiate(t *testing.T) {
	policy, err := NewLocalePolicy("en", []string{"ja", "pt-BR"})
	require.NoError(t, err)

	assert.Equal(t, "ja", policy.Negotiate("ja-JP,ja;q=0.9,en;q=0.5"))
	assert.Equal(t, "en", policy.Negotiate("en-GB"))
	assert.Equal(t, "pt-BR", policy.Negotiate("pt-BR"))
	assert.Equal(t, "", policy.Negotiate(""))
	assert.Equal(t, "", policy.Negotiate(";;;==="))

	var zero LocalePolicy
	assert.Equal(t, "", zero.Negotiate("en"))
}
