package consensus

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	defaultBlockInterval         = 15 * time.Second
	defaultRequiredConfirmations = 2
	authorityReputation          = 100
	authorityEnergyCost          = 0.0001
)

// AuthorityNode is a member of the fixed signer rotation.
type AuthorityNode struct {
	Address      string `json:"address"`
	PublicKey    string `json:"public_key"`
	Reputation   uint64 `json:"reputation"`
	BlocksSigned uint64 `json:"blocks_signed"`
	Active       bool   `json:"active"`
}

// ProofOfAuthority lets a fixed list of signers take turns in round-robin order.
type ProofOfAuthority struct {
	authorities           []*AuthorityNode
	current               int
	blockInterval         time.Duration
	requiredConfirmations int
	logger                *zap.Logger
}

// NewProofOfAuthority creates a rotation over the given addresses.
// The list must be non-empty with unique, non-empty addresses.
func NewProofOfAuthority(addresses []string, logger *zap.Logger) (*ProofOfAuthority, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: authority list is empty", types.ErrConfiguration)
	}
	a := &ProofOfAuthority{
		blockInterval:         defaultBlockInterval,
		requiredConfirmations: defaultRequiredConfirmations,
		logger:                named(logger, "authority"),
	}
	for _, addr := range addresses {
		if addr == "" {
			return nil, fmt.Errorf("%w: empty authority address", types.ErrConfiguration)
		}
		if a.find(addr) >= 0 {
			return nil, fmt.Errorf("%w: duplicate authority %s", types.ErrConfiguration, addr)
		}
		a.authorities = append(a.authorities, a.newNode(addr, fmt.Sprintf("pubkey_%d", len(a.authorities))))
	}
	return a, nil
}

func (a *ProofOfAuthority) newNode(address, publicKey string) *AuthorityNode {
	return &AuthorityNode{
		Address:    address,
		PublicKey:  publicKey,
		Reputation: authorityReputation,
		Active:     true,
	}
}

func (a *ProofOfAuthority) find(address string) int {
	for i, n := range a.authorities {
		if n.Address == address {
			return i
		}
	}
	return -1
}

func (a *ProofOfAuthority) activeCount() int {
	n := 0
	for _, node := range a.authorities {
		if node.Active {
			n++
		}
	}
	return n
}

// Authorities returns a copy of the rotation in order.
func (a *ProofOfAuthority) Authorities() []AuthorityNode {
	out := make([]AuthorityNode, len(a.authorities))
	for i, n := range a.authorities {
		out[i] = *n
	}
	return out
}

// CurrentIndex returns the rotation position of the next signer.
func (a *ProofOfAuthority) CurrentIndex() int { return a.current }

// AddAuthority appends a signer to the rotation.
func (a *ProofOfAuthority) AddAuthority(address, publicKey string) error {
	if address == "" {
		return fmt.Errorf("%w: empty authority address", types.ErrConfiguration)
	}
	if a.find(address) >= 0 {
		return fmt.Errorf("%w: authority %s already exists", types.ErrConfiguration, address)
	}
	if publicKey == "" {
		publicKey = fmt.Sprintf("pubkey_%d", len(a.authorities))
	}
	a.authorities = append(a.authorities, a.newNode(address, publicKey))
	a.logger.Info("authority added", zap.String("address", address))
	return nil
}

// RemoveAuthority drops a signer. Removing the only signer, or the last active one, is rejected.
func (a *ProofOfAuthority) RemoveAuthority(address string) error {
	idx := a.find(address)
	if idx < 0 {
		return fmt.Errorf("%w: authority %s not found", types.ErrConfiguration, address)
	}
	if len(a.authorities) <= 1 {
		return fmt.Errorf("%w: cannot remove the last authority", types.ErrConfiguration)
	}
	if a.authorities[idx].Active && a.activeCount() == 1 {
		return fmt.Errorf("%w: cannot remove the last active authority", types.ErrConfiguration)
	}

	a.authorities = append(a.authorities[:idx], a.authorities[idx+1:]...)
	if a.current >= len(a.authorities) {
		a.current = 0
	}
	a.logger.Info("authority removed", zap.String("address", address))
	return nil
}

// SetActive toggles whether a signer takes part in the rotation.
func (a *ProofOfAuthority) SetActive(address string, active bool) error {
	idx := a.find(address)
	if idx < 0 {
		return fmt.Errorf("%w: authority %s not found", types.ErrConfiguration, address)
	}
	node := a.authorities[idx]
	if !active && node.Active && a.activeCount() == 1 {
		return fmt.Errorf("%w: cannot deactivate the last active authority", types.ErrConfiguration)
	}
	node.Active = active
	return nil
}

// nextActive returns the first active position at or after from, or -1.
func (a *ProofOfAuthority) nextActive(from int) int {
	n := len(a.authorities)
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if a.authorities[idx].Active {
			return idx
		}
	}
	return -1
}

func authoritySignature(block *types.Block, node *AuthorityNode) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, node.Address, node.PublicKey)
}

// Execute signs with the current authority and advances the rotation to the next active one.
func (a *ProofOfAuthority) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if len(a.authorities) == 0 {
		return nil, fmt.Errorf("%w: no authorities configured", types.ErrInsufficientResources)
	}
	idx := a.nextActive(a.current)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no active authorities", types.ErrInsufficientResources)
	}
	node := a.authorities[idx]

	block.Hash = authoritySignature(block, node)
	block.Nonce = uint64(idx)
	block.SetConsensusData("authority", node.Address)
	block.SetConsensusData("public_key", node.PublicKey)
	node.BlocksSigned++

	if next := a.nextActive(idx + 1); next >= 0 {
		a.current = next
	}

	proof := map[string]string{
		"algorithm_name":         a.Name(),
		"authority":              node.Address,
		"authority_index":        strconv.Itoa(idx),
		"authority_reputation":   formatUint(node.Reputation),
		"active_authorities":     strconv.Itoa(a.activeCount()),
		"required_confirmations": strconv.Itoa(a.requiredConfirmations),
	}

	a.logger.Info("block signed", zap.Uint64("index", block.Index), zap.String("authority", node.Address))
	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(authorityEnergyCost)), nil
}

// Validate checks the signer named by the nonce is an active authority and re-derives its signature.
func (a *ProofOfAuthority) Validate(block *types.Block) bool {
	if block.Nonce >= uint64(len(a.authorities)) {
		return false
	}
	node := a.authorities[block.Nonce]
	if !node.Active {
		return false
	}
	return block.Hash == authoritySignature(block, node)
}

// Name returns the algorithm name.
func (a *ProofOfAuthority) Name() string { return "Proof of Authority" }

// EnergyEfficiency is fixed.
func (a *ProofOfAuthority) EnergyEfficiency() (float64, bool) { return 0.995, true }

// Statistics returns rotation counters.
func (a *ProofOfAuthority) Statistics() map[string]string {
	return map[string]string{
		"total_authorities":      strconv.Itoa(len(a.authorities)),
		"active_authorities":     strconv.Itoa(a.activeCount()),
		"current_index":          strconv.Itoa(a.current),
		"block_interval_seconds": strconv.FormatInt(int64(a.blockInterval/time.Second), 10),
		"required_confirmations": strconv.Itoa(a.requiredConfirmations),
	}
}

// NextDifficulty is not applicable.
func (a *ProofOfAuthority) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts block_interval_seconds and required_confirmations.
func (a *ProofOfAuthority) Configure(params types.Params) error {
	interval, iok, err := params.Uint("block_interval_seconds")
	if err != nil {
		return err
	}
	confirmations, cok, err := params.Int("required_confirmations")
	if err != nil {
		return err
	}
	if cok && confirmations < 1 {
		return fmt.Errorf("%w: required_confirmations must be at least 1", types.ErrConfiguration)
	}
	if iok {
		a.blockInterval = time.Duration(interval) * time.Second
	}
	if cok {
		a.requiredConfirmations = confirmations
	}
	return nil
}
