// Package pbft implements a simulated Practical Byzantine Fault Tolerance agreement.
package pbft

import (
	"github.com/ahwlsqja/proofchain/crypto"
)

// MessageType represents the phase a PBFT message belongs to.
type MessageType int

const (
	// PrePrepare is sent by the primary to initiate consensus.
	PrePrepare MessageType = iota
	// Prepare is sent by replicas after receiving PrePrepare.
	Prepare
	// Commit is sent once enough Prepare messages are collected.
	Commit
)

// String returns the string representation of MessageType.
func (mt MessageType) String() string {
	switch mt {
	case PrePrepare:
		return "PRE-PREPARE"
	case Prepare:
		return "PREPARE"
	case Commit:
		return "COMMIT"
	default:
		return "UNKNOWN"
	}
}

// Message represents a PBFT consensus message.
type Message struct {
	Type        MessageType `json:"type"`
	View        uint64      `json:"view"`
	SequenceNum uint64      `json:"sequence_num"`
	Digest      string      `json:"digest"`
	NodeID      string      `json:"node_id"`
	Timestamp   int64       `json:"timestamp"`
	Signature   string      `json:"signature"`
}

// NewMessage 새로운 PBFT 메시지를 생성하고 서명함.
func NewMessage(msgType MessageType, view, seqNum uint64, digest, nodeID string, timestamp int64) *Message {
	m := &Message{
		Type:        msgType,
		View:        view,
		SequenceNum: seqNum,
		Digest:      digest,
		NodeID:      nodeID,
		Timestamp:   timestamp,
	}
	m.Signature = m.sign()
	return m
}

func (m *Message) sign() string {
	return crypto.HashParts(m.Type.String(), m.View, m.SequenceNum, m.Digest, m.NodeID, m.Timestamp)
}

// Verify checks the signature binds every field of the message.
func (m *Message) Verify() bool {
	return m.Signature == m.sign()
}
