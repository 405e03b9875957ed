package mint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledMinterDegrades(t *testing.T) {
	m := Disabled()

	res := m.Mint(context.Background(), "0x1111111111111111111111111111111111111111")
	assert.True(t, res.Degraded)
	assert.Equal(t, ZeroTxHash, res.TxHash)
	assert.Error(t, res.Err)
}

func TestMissingConfigurationYieldsDisabledMinter(t *testing.T) {
	assert.True(t, NewMinter("", "", "", 1, "1").Mint(context.Background(), "0x1111111111111111111111111111111111111111").Degraded)
	assert.True(t, NewMinter("http://127.0.0.1:0", "not-a-key", "0x1111111111111111111111111111111111111111", 1, "1").Mint(context.Background(), "0x1111111111111111111111111111111111111111").Degraded)
}

func TestInvalidRecipientDegrades(t *testing.T) {
	m := Disabled()
	m.enabled = true // force past the configuration check

	res := m.Mint(context.Background(), "not-an-address")
	assert.True(t, res.Degraded)
	assert.Equal(t, ZeroTxHash, res.TxHash)
}
