package consensus

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ahwlsqja/proofchain/types"
)

// Kind selects one of the eight algorithms together with its configuration.
// The set of kinds is closed.
type Kind interface {
	// Key is the short identifier used by ParseKind ("pow", "pbft", ...).
	Key() string
	Name() string
	Description() string
	Characteristics() map[string]string
	// Params renders the kind so that ParseKind(Key(), Params()) rebuilds it.
	Params() types.Params
	isKind()
}

// ValidatorSeed is a stake holder loaded into a fresh Stake instance.
type ValidatorSeed struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

// BurnSeed is a burn loaded into a fresh Burn instance.
type BurnSeed struct {
	Amount    uint64 `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
}

// PlotSeed is a plot created on a fresh Capacity instance.
type PlotSeed struct {
	SizeGB     uint64 `json:"size_gb"`
	NonceCount uint64 `json:"nonce_count"`
}

type (
	// Work configures Proof of Work.
	Work struct{ Difficulty int }

	// Stake configures Proof of Stake.
	Stake struct {
		MinimumStake uint64
		Validators   []ValidatorSeed
	}

	// History configures Proof of History.
	History struct{ VDFIterations uint64 }

	// Authority configures Proof of Authority.
	Authority struct{ Validators []string }

	// ElapsedTime configures Proof of Elapsed Time.
	ElapsedTime struct {
		BaseWaitMs   uint64
		NodeID       string
		SimulateWait bool
	}

	// Burn configures Proof of Burn.
	Burn struct {
		MinimumBurnAmount uint64
		Burns             []BurnSeed
	}

	// Capacity configures Proof of Capacity.
	Capacity struct {
		StorageRequirementGB uint64
		Plots                []PlotSeed
	}

	// Byzantine configures Practical Byzantine Fault Tolerance.
	Byzantine struct {
		NodeCount      int
		FaultTolerance float64
	}
)

func (Work) isKind()        {}
func (Stake) isKind()       {}
func (History) isKind()     {}
func (Authority) isKind()   {}
func (ElapsedTime) isKind() {}
func (Burn) isKind()        {}
func (Capacity) isKind()    {}
func (Byzantine) isKind()   {}

// Kind keys accepted by ParseKind.
const (
	KeyWork        = "pow"
	KeyStake       = "pos"
	KeyHistory     = "poh"
	KeyAuthority   = "poa"
	KeyElapsedTime = "poet"
	KeyBurn        = "pob"
	KeyCapacity    = "poc"
	KeyByzantine   = "pbft"
)

// Keys lists every kind key in a stable order.
func Keys() []string {
	return []string{KeyWork, KeyStake, KeyHistory, KeyAuthority, KeyElapsedTime, KeyBurn, KeyCapacity, KeyByzantine}
}

// DefaultKind is Work with difficulty 4.
func DefaultKind() Kind { return Work{Difficulty: 4} }

func (Work) Key() string        { return KeyWork }
func (Stake) Key() string       { return KeyStake }
func (History) Key() string     { return KeyHistory }
func (Authority) Key() string   { return KeyAuthority }
func (ElapsedTime) Key() string { return KeyElapsedTime }
func (Burn) Key() string        { return KeyBurn }
func (Capacity) Key() string    { return KeyCapacity }
func (Byzantine) Key() string   { return KeyByzantine }

func (Work) Name() string        { return "Proof of Work" }
func (Stake) Name() string       { return "Proof of Stake" }
func (History) Name() string     { return "Proof of History" }
func (Authority) Name() string   { return "Proof of Authority" }
func (ElapsedTime) Name() string { return "Proof of Elapsed Time" }
func (Burn) Name() string        { return "Proof of Burn" }
func (Capacity) Name() string    { return "Proof of Capacity" }
func (Byzantine) Name() string   { return "Practical Byzantine Fault Tolerance" }

func (Work) Description() string {
	return "Miners search for a nonce whose hash meets a leading-zero target"
}

func (Stake) Description() string {
	return "Validators are drawn with probability weighted by stake and reputation"
}

func (History) Description() string {
	return "A sequential hash chain acts as a verifiable clock between blocks"
}

func (Authority) Description() string {
	return "Pre-approved signers take turns producing blocks"
}

func (ElapsedTime) Description() string {
	return "Nodes wait a certified pseudo-random time before claiming a block"
}

func (Burn) Description() string {
	return "Destroyed coins buy lottery weight that decays with age"
}

func (Capacity) Description() string {
	return "Precomputed storage plots compete on the smallest deadline"
}

func (Byzantine) Description() string {
	return "Three-phase voting among a permissioned set of replicas"
}

func traits(efficiency, security, decentralization string) map[string]string {
	return map[string]string{
		"energy_efficiency": efficiency,
		"security":          security,
		"decentralization":  decentralization,
	}
}

func (k Work) Characteristics() map[string]string {
	m := traits("Low", "High", "High")
	m["difficulty"] = strconv.Itoa(k.Difficulty)
	return m
}

func (k Stake) Characteristics() map[string]string {
	m := traits("High", "High", "Medium")
	m["minimum_stake"] = formatUint(k.MinimumStake)
	return m
}

func (k History) Characteristics() map[string]string {
	m := traits("Medium", "High", "Medium")
	m["vdf_iterations"] = formatUint(k.VDFIterations)
	return m
}

func (k Authority) Characteristics() map[string]string {
	m := traits("Very High", "Medium", "Low")
	m["validator_count"] = strconv.Itoa(len(k.Validators))
	return m
}

func (k ElapsedTime) Characteristics() map[string]string {
	m := traits("High", "High", "Medium")
	m["wait_time_ms"] = formatUint(k.BaseWaitMs)
	return m
}

func (k Burn) Characteristics() map[string]string {
	m := traits("High", "Medium", "High")
	m["burn_amount"] = formatUint(k.MinimumBurnAmount)
	return m
}

func (k Capacity) Characteristics() map[string]string {
	m := traits("High", "Medium", "High")
	m["storage_gb"] = formatUint(k.StorageRequirementGB)
	return m
}

func (k Byzantine) Characteristics() map[string]string {
	m := traits("Medium", "Very High", "Low")
	m["node_count"] = strconv.Itoa(k.NodeCount)
	m["fault_tolerance"] = formatFloat(k.FaultTolerance * 100)
	return m
}

func (k Work) Params() types.Params {
	return types.Params{"difficulty": strconv.Itoa(k.Difficulty)}
}

func (k Stake) Params() types.Params {
	p := types.Params{"minimum_stake": formatUint(k.MinimumStake)}
	if len(k.Validators) > 0 {
		entries := make([]string, len(k.Validators))
		for i, v := range k.Validators {
			entries[i] = v.Address + ":" + formatUint(v.Stake)
		}
		p["validators"] = strings.Join(entries, ",")
	}
	return p
}

func (k History) Params() types.Params {
	return types.Params{"vdf_iterations": formatUint(k.VDFIterations)}
}

func (k Authority) Params() types.Params {
	return types.Params{"validators": strings.Join(k.Validators, ",")}
}

func (k ElapsedTime) Params() types.Params {
	p := types.Params{
		"base_wait_ms":  formatUint(k.BaseWaitMs),
		"simulate_wait": strconv.FormatBool(k.SimulateWait),
	}
	if k.NodeID != "" {
		p["node_id"] = k.NodeID
	}
	return p
}

func (k Burn) Params() types.Params {
	p := types.Params{"minimum_burn_amount": formatUint(k.MinimumBurnAmount)}
	if len(k.Burns) > 0 {
		entries := make([]string, len(k.Burns))
		for i, b := range k.Burns {
			entries[i] = formatUint(b.Amount) + ":" + formatUint(b.Timestamp)
		}
		p["burns"] = strings.Join(entries, ",")
	}
	return p
}

func (k Capacity) Params() types.Params {
	p := types.Params{"storage_requirement_gb": formatUint(k.StorageRequirementGB)}
	if len(k.Plots) > 0 {
		entries := make([]string, len(k.Plots))
		for i, pl := range k.Plots {
			entries[i] = formatUint(pl.SizeGB) + ":" + formatUint(pl.NonceCount)
		}
		p["plots"] = strings.Join(entries, ",")
	}
	return p
}

func (k Byzantine) Params() types.Params {
	return types.Params{
		"node_count":      strconv.Itoa(k.NodeCount),
		"fault_tolerance": formatFloat(k.FaultTolerance),
	}
}

// Defaults applied by ParseKind when a parameter is absent.
const (
	defaultDifficulty    = 4
	defaultMinimumStake  = 1000
	defaultVDFIterations = 1000
	defaultBaseWaitMs    = 1000
	defaultMinimumBurn   = 100
	defaultStorageGB     = 1
	defaultNodeCount     = 4
	defaultFaultFraction = 0.33
)

var defaultAuthorities = []string{"validator1", "validator2", "validator3"}

// ParseKind builds a kind from its key and string parameters.
func ParseKind(key string, params types.Params) (Kind, error) {
	if params == nil {
		params = types.Params{}
	}
	switch strings.ToLower(strings.TrimSpace(key)) {
	case KeyWork, "work":
		d, ok, err := params.Int("difficulty")
		if err != nil {
			return nil, err
		}
		if !ok {
			d = defaultDifficulty
		}
		return Work{Difficulty: d}, nil

	case KeyStake, "stake":
		k := Stake{MinimumStake: defaultMinimumStake}
		if err := uintParam(params, "minimum_stake", &k.MinimumStake); err != nil {
			return nil, err
		}
		pairs, err := pairList(params, "validators")
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			stake, err := strconv.ParseUint(p[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: validator %s has invalid stake %q", types.ErrConfiguration, p[0], p[1])
			}
			k.Validators = append(k.Validators, ValidatorSeed{Address: p[0], Stake: stake})
		}
		return k, nil

	case KeyHistory, "history":
		k := History{VDFIterations: defaultVDFIterations}
		if err := uintParam(params, "vdf_iterations", &k.VDFIterations); err != nil {
			return nil, err
		}
		return k, nil

	case KeyAuthority, "authority":
		validators, ok := params.List("validators")
		if !ok {
			validators = append([]string(nil), defaultAuthorities...)
		}
		return Authority{Validators: validators}, nil

	case KeyElapsedTime, "elapsed":
		k := ElapsedTime{BaseWaitMs: defaultBaseWaitMs, NodeID: params["node_id"]}
		if err := uintParam(params, "base_wait_ms", &k.BaseWaitMs); err != nil {
			return nil, err
		}
		sim, _, err := params.Bool("simulate_wait")
		if err != nil {
			return nil, err
		}
		k.SimulateWait = sim
		return k, nil

	case KeyBurn, "burn":
		k := Burn{MinimumBurnAmount: defaultMinimumBurn}
		if err := uintParam(params, "burn_amount", &k.MinimumBurnAmount); err != nil {
			return nil, err
		}
		if err := uintParam(params, "minimum_burn_amount", &k.MinimumBurnAmount); err != nil {
			return nil, err
		}
		pairs, err := uintPairList(params, "burns")
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			k.Burns = append(k.Burns, BurnSeed{Amount: p[0], Timestamp: p[1]})
		}
		return k, nil

	case KeyCapacity, "capacity":
		k := Capacity{StorageRequirementGB: defaultStorageGB}
		if err := uintParam(params, "storage_requirement_gb", &k.StorageRequirementGB); err != nil {
			return nil, err
		}
		pairs, err := uintPairList(params, "plots")
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			k.Plots = append(k.Plots, PlotSeed{SizeGB: p[0], NonceCount: p[1]})
		}
		return k, nil

	case KeyByzantine, "byzantine":
		k := Byzantine{NodeCount: defaultNodeCount, FaultTolerance: defaultFaultFraction}
		if n, ok, err := params.Int("node_count"); err != nil {
			return nil, err
		} else if ok {
			k.NodeCount = n
		}
		if ft, ok, err := params.Float("fault_tolerance"); err != nil {
			return nil, err
		} else if ok {
			k.FaultTolerance = ft
		}
		return k, nil
	}

	return nil, fmt.Errorf("%w: unknown algorithm %q (expected one of %s)", types.ErrConfiguration, key, strings.Join(Keys(), ", "))
}

func uintParam(params types.Params, key string, dst *uint64) error {
	v, ok, err := params.Uint(key)
	if err != nil {
		return err
	}
	if ok {
		*dst = v
	}
	return nil
}

// pairList parses "a:b,c:d" entries.
func pairList(params types.Params, key string) ([][2]string, error) {
	entries, _ := params.List(key)
	out := make([][2]string, 0, len(entries))
	for _, e := range entries {
		left, right, ok := strings.Cut(e, ":")
		if !ok || left == "" || right == "" {
			return nil, fmt.Errorf("%w: %s entry %q must be left:right", types.ErrConfiguration, key, e)
		}
		out = append(out, [2]string{strings.TrimSpace(left), strings.TrimSpace(right)})
	}
	return out, nil
}

func uintPairList(params types.Params, key string) ([][2]uint64, error) {
	pairs, err := pairList(params, key)
	if err != nil {
		return nil, err
	}
	out := make([][2]uint64, len(pairs))
	for i, p := range pairs {
		for j := range p {
			v, err := strconv.ParseUint(p[j], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s entry %q is not numeric", types.ErrConfiguration, key, p[0]+":"+p[1])
			}
			out[i][j] = v
		}
	}
	return out, nil
}

// DescribeAll returns one kind per key with default parameters, sorted by key.
func DescribeAll() []Kind {
	kinds := make([]Kind, 0, len(Keys()))
	for _, key := range Keys() {
		k, _ := ParseKind(key, nil)
		kinds = append(kinds, k)
	}
	sort.SliceStable(kinds, func(i, j int) bool { return kinds[i].Key() < kinds[j].Key() })
	return kinds
}
