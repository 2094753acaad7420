package pbft

import "fmt"

const faultyReputation = 0.1

// Node is a simulated replica.
type Node struct {
	ID         string  `json:"id"`
	IsPrimary  bool    `json:"is_primary"`
	IsFaulty   bool    `json:"is_faulty"`
	Reputation float64 `json:"reputation"`
}

func newNodes(n int) []*Node {
	nodes := make([]*Node, n)
	for i := range nodes {
		nodes[i] = &Node{
			ID:         fmt.Sprintf("node_%d", i),
			IsPrimary:  i == 0,
			Reputation: 1.0,
		}
	}
	return nodes
}
