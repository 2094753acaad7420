package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ahwlsqja/proofchain/chain"
	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/types"
)

func setup(t *testing.T, kind consensus.Kind) (*Client, *chain.Engine) {
	t.Helper()

	cfg := chain.DefaultConfig()
	cfg.Now = func() time.Time { return time.Unix(1700000000, 0) }
	engine, err := chain.NewEngine(cfg, kind, nil, nil, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(engine, "bufnet", nil)
	srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, engine
}

func TestAddBlockAndBlocks(t *testing.T) {
	client, engine := setup(t, consensus.Work{Difficulty: 1})
	ctx := context.Background()

	resp, err := client.AddBlock(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.Block.Index)
	assert.Equal(t, "tx-1", resp.Block.Data)
	assert.Equal(t, "Proof of Work", resp.ProofData["algorithm_name"])
	assert.Equal(t, int64(1700000000), resp.Block.Timestamp.AsTime().Unix())
	require.NotNil(t, resp.EnergyCost)

	blocks, err := client.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	local := engine.Blocks()
	for i, b := range blocks {
		assert.Equal(t, local[i], *b.ToBlock())
	}

	valid, err := client.IsValid(ctx)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSwitchAlgorithm(t *testing.T) {
	client, engine := setup(t, consensus.Work{Difficulty: 1})
	ctx := context.Background()

	name, err := client.SwitchAlgorithm(ctx, consensus.Authority{Validators: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "Proof of Authority", name)
	assert.Equal(t, consensus.KeyAuthority, engine.Kind().Key())

	info, err := client.AlgorithmInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Proof of Authority", info["algorithm_name"])
	assert.Equal(t, "3", info["total_authorities"])

	_, err = client.SwitchAlgorithm(ctx, consensus.Byzantine{NodeCount: 0, FaultTolerance: 0.33})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "Proof of Authority", engine.Algorithm().Name())
}

func TestConsensusFailureStatus(t *testing.T) {
	client, _ := setup(t, consensus.Stake{MinimumStake: 100})
	ctx := context.Background()

	_, err := client.AddBlock(ctx, "tx-1")
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ConsensusFailures)
	assert.Equal(t, uint64(1), stats.ToStats().TotalBlocks)
}

func TestBenchmark(t *testing.T) {
	client, _ := setup(t, consensus.Work{Difficulty: 1})
	ctx := context.Background()

	results, err := client.Benchmark(ctx, []string{"a", "b"}, consensus.History{VDFIterations: 10}, consensus.Work{Difficulty: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Proof of History", results[0].Algorithm)
	assert.Equal(t, 2, results[0].Blocks)
	assert.Equal(t, "Proof of Work", results[1].Algorithm)

	_, err = client.Benchmark(ctx, []string{"a"}, consensus.Authority{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestKindSpecRoundTrip(t *testing.T) {
	for _, kind := range []consensus.Kind{
		consensus.Work{Difficulty: 3},
		consensus.Authority{Validators: []string{"x", "y"}},
		consensus.Byzantine{NodeCount: 7, FaultTolerance: 0.3},
	} {
		got, err := KindSpecOf(kind).Kind()
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("consensus failed: %w", types.ErrConsensusNotReached), codes.Aborted},
		{fmt.Errorf("consensus failed: %w", types.ErrInsufficientResources), codes.Aborted},
		{fmt.Errorf("bad: %w", types.ErrConfiguration), codes.InvalidArgument},
		{types.ErrNoActiveAlgorithm, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}
