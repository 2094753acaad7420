package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ahwlsqja/proofchain/crypto"
)

func TestNewBlock(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBlock(3, "payload", "prev", now)

	assert.Equal(t, uint64(3), b.Index)
	assert.Equal(t, int64(1700000000), b.Timestamp)
	assert.Equal(t, DefaultDifficulty, b.Difficulty)
	assert.Empty(t, b.Hash)
	assert.NotNil(t, b.ConsensusData)
}

func TestBasicHash(t *testing.T) {
	b := NewBlock(1, "data", "prev", time.Unix(10, 0))
	b.Nonce = 7
	assert.Equal(t, crypto.HashHex([]byte("110dataprev74")), b.BasicHash())
}

func TestCloneIsDeep(t *testing.T) {
	b := NewBlock(1, "data", "prev", time.Now())
	b.SetConsensusData("k", "v")

	c := b.Clone()
	c.ConsensusData["k"] = "changed"
	c.Hash = "x"

	assert.Equal(t, "v", b.Get("k"))
	assert.Empty(t, b.Hash)
}

func TestResultEnergy(t *testing.T) {
	r := NewConsensusResult(NewBlock(0, "", "0", time.Now()), nil, time.Millisecond, nil)
	assert.Zero(t, r.Energy())

	r = NewConsensusResult(NewBlock(0, "", "0", time.Now()), nil, time.Millisecond, Float(1.5))
	assert.Equal(t, 1.5, r.Energy())
}
