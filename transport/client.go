package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ahwlsqja/proofchain/consensus"
)

// Client calls a remote EngineService.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. Extra options are appended to the insecure JSON defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp)
}

// AddBlock finalizes a block carrying data.
func (c *Client) AddBlock(ctx context.Context, data string) (*AddBlockResponse, error) {
	resp := new(AddBlockResponse)
	if err := c.invoke(ctx, "AddBlock", &AddBlockRequest{Data: data}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SwitchAlgorithm replaces the remote engine's algorithm and returns the new algorithm name.
func (c *Client) SwitchAlgorithm(ctx context.Context, kind consensus.Kind) (string, error) {
	resp := new(SwitchAlgorithmResponse)
	if err := c.invoke(ctx, "SwitchAlgorithm", &SwitchAlgorithmRequest{Kind: KindSpecOf(kind)}, resp); err != nil {
		return "", err
	}
	return resp.Algorithm, nil
}

// IsValid validates the remote chain.
func (c *Client) IsValid(ctx context.Context) (bool, error) {
	resp := new(IsValidResponse)
	if err := c.invoke(ctx, "IsValid", &IsValidRequest{}, resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Stats fetches the engine statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	resp := new(StatsResponse)
	if err := c.invoke(ctx, "Stats", &StatsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AlgorithmInfo fetches the active algorithm's info map.
func (c *Client) AlgorithmInfo(ctx context.Context) (map[string]string, error) {
	resp := new(AlgorithmInfoResponse)
	if err := c.invoke(ctx, "AlgorithmInfo", &AlgorithmInfoRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Info, nil
}

// Benchmark runs payloads remotely. With no kinds the default battery is used.
func (c *Client) Benchmark(ctx context.Context, payloads []string, kinds ...consensus.Kind) ([]BenchmarkResult, error) {
	req := &BenchmarkRequest{Payloads: payloads}
	for _, k := range kinds {
		req.Kinds = append(req.Kinds, KindSpecOf(k))
	}
	resp := new(BenchmarkResponse)
	if err := c.invoke(ctx, "Benchmark", req, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Blocks fetches the remote chain.
func (c *Client) Blocks(ctx context.Context) ([]*Block, error) {
	resp := new(BlocksResponse)
	if err := c.invoke(ctx, "Blocks", &BlocksRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}
