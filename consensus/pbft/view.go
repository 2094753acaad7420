package pbft

import "go.uber.org/zap"

// primaryIndex returns the position of the current primary.
func (a *Agreement) primaryIndex() int {
	return a.primaryIdx
}

// primary returns the primary node, or nil when it is faulty.
func (a *Agreement) primary() *Node {
	if len(a.nodes) == 0 {
		return nil
	}
	p := a.nodes[a.primaryIndex()]
	if p.IsFaulty {
		return nil
	}
	return p
}

// PrimaryID returns the ID of the current primary.
func (a *Agreement) PrimaryID() string {
	if len(a.nodes) == 0 {
		return ""
	}
	return a.nodes[a.primaryIndex()].ID
}

// View returns the current view number.
func (a *Agreement) View() uint64 { return a.view }

// nextHonest returns the first honest node after from in list order, wrapping.
// When every other node is faulty it returns from.
func (a *Agreement) nextHonest(from int) int {
	n := len(a.nodes)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if !a.nodes[i].IsFaulty {
			return i
		}
	}
	return from
}

// RotatePrimary hands primacy to the next honest node and advances the view by one.
func (a *Agreement) RotatePrimary() {
	if len(a.nodes) == 0 {
		return
	}
	a.nodes[a.primaryIdx].IsPrimary = false
	a.primaryIdx = a.nextHonest(a.primaryIdx)
	a.nodes[a.primaryIdx].IsPrimary = true
	a.view++

	a.logger.Info("primary rotated", zap.Uint64("view", a.view), zap.String("primary", a.PrimaryID()))
}
