package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ahwlsqja/proofchain/chain"
	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/types"
)

// Server serves EngineService for a single engine.
type Server struct {
	mu sync.Mutex

	engine   *chain.Engine
	address  string
	server   *grpc.Server
	listener net.Listener
	running  bool
	logger   *zap.Logger
}

var _ EngineServiceServer = (*Server)(nil)

// NewServer creates a server for engine. It does not listen until Start or Serve.
func NewServer(engine *chain.Engine, address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		address: address,
		logger:  logger.With(zap.String("component", "grpc")),
	}
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(64*1024*1024), // 64MB
		grpc.MaxSendMsgSize(64*1024*1024),
		grpc.ChainUnaryInterceptor(s.logUnary),
	)
	RegisterEngineServiceServer(s.server, s)
	return s
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.Serve(listener)
	s.logger.Info("grpc server started", zap.String("address", listener.Addr().String()))
	return nil
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(listener net.Listener) {
	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if running {
				s.logger.Error("grpc server error", zap.Error(err))
			}
		}
	}()
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.server.GracefulStop()
	s.logger.Info("grpc server stopped")
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("rpc served", fields...)
	}
	return resp, err
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrNoActiveAlgorithm):
		return status.Error(codes.FailedPrecondition, err.Error())
	case chain.IsConsensusFailure(err):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// AddBlock finalizes a block with the engine's active algorithm.
func (s *Server) AddBlock(_ context.Context, req *AddBlockRequest) (*AddBlockResponse, error) {
	res, err := s.engine.AddBlock(req.Data)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddBlockResponse{
		Block:         blockToWire(&res.Block),
		ProofData:     res.ProofData,
		ExecutionTime: durationpb.New(res.ExecutionTime),
		EnergyCost:    res.EnergyCost,
	}, nil
}

// SwitchAlgorithm replaces the engine's active algorithm.
func (s *Server) SwitchAlgorithm(_ context.Context, req *SwitchAlgorithmRequest) (*SwitchAlgorithmResponse, error) {
	kind, err := req.Kind.Kind()
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.engine.SwitchAlgorithm(kind); err != nil {
		return nil, toStatus(err)
	}
	return &SwitchAlgorithmResponse{Algorithm: kind.Name()}, nil
}

// IsValid validates the whole chain.
func (s *Server) IsValid(context.Context, *IsValidRequest) (*IsValidResponse, error) {
	return &IsValidResponse{Valid: s.engine.IsValid()}, nil
}

// Stats returns the engine statistics.
func (s *Server) Stats(context.Context, *StatsRequest) (*StatsResponse, error) {
	return statsToWire(s.engine.Stats()), nil
}

// AlgorithmInfo returns the active algorithm's info map.
func (s *Server) AlgorithmInfo(context.Context, *AlgorithmInfoRequest) (*AlgorithmInfoResponse, error) {
	info, err := s.engine.AlgorithmInfo()
	if err != nil {
		return nil, toStatus(err)
	}
	return &AlgorithmInfoResponse{Info: info}, nil
}

// Benchmark runs payloads through disposable algorithm instances.
func (s *Server) Benchmark(_ context.Context, req *BenchmarkRequest) (*BenchmarkResponse, error) {
	var (
		results []chain.BenchmarkResult
		err     error
	)
	if len(req.Kinds) == 0 {
		results, err = s.engine.Benchmark(req.Payloads)
	} else {
		kinds := make([]consensus.Kind, 0, len(req.Kinds))
		for _, spec := range req.Kinds {
			kind, kerr := spec.Kind()
			if kerr != nil {
				return nil, toStatus(kerr)
			}
			kinds = append(kinds, kind)
		}
		results, err = s.engine.BenchmarkKinds(kinds, req.Payloads)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &BenchmarkResponse{Results: benchmarkToWire(results)}, nil
}

// Blocks returns the chain.
func (s *Server) Blocks(context.Context, *BlocksRequest) (*BlocksResponse, error) {
	blocks := s.engine.Blocks()
	out := make([]*Block, len(blocks))
	for i := range blocks {
		out[i] = blockToWire(&blocks[i])
	}
	return &BlocksResponse{Blocks: out}, nil
}
