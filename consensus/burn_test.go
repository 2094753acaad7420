package consensus

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

func TestBurnNoRecords(t *testing.T) {
	b := NewProofOfBurn(100, nil)
	_, err := b.Execute(testBlock(1, "prev"))
	assert.True(t, errors.Is(err, types.ErrInsufficientResources))
}

func TestBurnMinimum(t *testing.T) {
	b := NewProofOfBurn(100, nil)
	_, err := b.AddBurn(99, 0)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	assert.Empty(t, b.Records())
}

func TestBurnRecordDigest(t *testing.T) {
	b := NewProofOfBurn(100, nil)
	tx, err := b.AddBurn(500, 3)
	require.NoError(t, err)
	assert.Equal(t, crypto.HashParts(uint64(500), DefaultBurnAddress, uint64(3)), tx)
}

func TestBurnPowerDecays(t *testing.T) {
	b := NewProofOfBurn(0, nil)
	r := BurnRecord{Amount: 1000, Timestamp: 2}

	assert.Equal(t, 1000.0, b.Power(r, 2))
	assert.Equal(t, 1000.0, b.Power(r, 1))
	assert.InDelta(t, 950.0, b.Power(r, 3), 1e-9)
	assert.InDelta(t, 902.5, b.Power(r, 4), 1e-9)
}

func TestBurnExecuteValidate(t *testing.T) {
	b := NewProofOfBurn(100, nil)
	for i, amount := range []uint64{200, 500, 1000} {
		_, err := b.AddBurn(amount, uint64(i))
		require.NoError(t, err)
	}

	for i := uint64(1); i <= 5; i++ {
		block := testBlock(i, fmt.Sprintf("prev-%d", i))
		res, err := b.Execute(block)
		require.NoError(t, err)

		tx := res.ProofData["burn_tx"]
		assert.True(t, strings.HasPrefix(tx, fmt.Sprintf("%016x", block.Nonce)))
		assert.Equal(t, 0.005, res.Energy())
		assert.True(t, b.Validate(block), "block %d", i)
	}
}

func TestBurnValidateRejectsTampering(t *testing.T) {
	b := NewProofOfBurn(1, nil)
	_, err := b.AddBurn(10, 0)
	require.NoError(t, err)

	block := testBlock(1, "prev")
	_, err = b.Execute(block)
	require.NoError(t, err)

	tampered := block.Clone()
	tampered.Index = 2
	assert.False(t, b.Validate(tampered))

	tampered = block.Clone()
	tampered.Nonce = 0
	assert.False(t, b.Validate(tampered))
}

func TestBurnLotteryDeterministic(t *testing.T) {
	newBurn := func() *ProofOfBurn {
		b := NewProofOfBurn(1, nil)
		for i := uint64(0); i < 4; i++ {
			_, err := b.AddBurn(100*(i+1), i)
			require.NoError(t, err)
		}
		return b
	}
	a, c := newBurn(), newBurn()

	ba, bc := testBlock(5, "same"), testBlock(5, "same")
	_, err := a.Execute(ba)
	require.NoError(t, err)
	_, err = c.Execute(bc)
	require.NoError(t, err)
	assert.Equal(t, ba.Hash, bc.Hash)
}
