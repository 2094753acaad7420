// Package types defines the core data structures shared by every consensus algorithm.
package types

import (
	"fmt"
	"time"

	"github.com/ahwlsqja/proofchain/crypto"
)

// DefaultDifficulty is stamped on freshly constructed blocks.
const DefaultDifficulty = 4

// Block represents a block in the chain.
type Block struct {
	Index         uint64            `json:"index"`
	Timestamp     int64             `json:"timestamp"` // unix seconds
	Data          string            `json:"data"`
	PreviousHash  string            `json:"previous_hash"`
	Hash          string            `json:"hash"`
	Nonce         uint64            `json:"nonce"`
	Difficulty    int               `json:"difficulty"`
	ConsensusData map[string]string `json:"consensus_data"`
}

// NewBlock creates an unfinalized block. Hash stays empty until an algorithm executes it.
func NewBlock(index uint64, data, previousHash string, now time.Time) *Block {
	return &Block{
		Index:         index,
		Timestamp:     now.Unix(),
		Data:          data,
		PreviousHash:  previousHash,
		Difficulty:    DefaultDifficulty,
		ConsensusData: make(map[string]string),
	}
}

// BasicHash digests the block fields that every algorithm commits to.
func (b *Block) BasicHash() string {
	return crypto.HashParts(b.Index, b.Timestamp, b.Data, b.PreviousHash, b.Nonce, b.Difficulty)
}

// SetConsensusData records an algorithm-specific metadata entry.
func (b *Block) SetConsensusData(key, value string) {
	if b.ConsensusData == nil {
		b.ConsensusData = make(map[string]string)
	}
	b.ConsensusData[key] = value
}

// Get returns a metadata entry, or "" when absent.
func (b *Block) Get(key string) string {
	return b.ConsensusData[key]
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := *b
	c.ConsensusData = make(map[string]string, len(b.ConsensusData))
	for k, v := range b.ConsensusData {
		c.ConsensusData[k] = v
	}
	return &c
}

// ShortHash returns the first n characters of the hash.
func (b *Block) ShortHash(n int) string {
	if len(b.Hash) <= n {
		return b.Hash
	}
	return b.Hash[:n]
}

// String returns a one-line description of the block.
func (b *Block) String() string {
	return fmt.Sprintf("Block #%d [%s] prev=%s nonce=%d", b.Index, b.ShortHash(16), shorten(b.PreviousHash, 16), b.Nonce)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
