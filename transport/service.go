package transport

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "proofchain.v1.EngineService"

// EngineServiceServer is the server API for EngineService.
type EngineServiceServer interface {
	AddBlock(context.Context, *AddBlockRequest) (*AddBlockResponse, error)
	SwitchAlgorithm(context.Context, *SwitchAlgorithmRequest) (*SwitchAlgorithmResponse, error)
	IsValid(context.Context, *IsValidRequest) (*IsValidResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	AlgorithmInfo(context.Context, *AlgorithmInfoRequest) (*AlgorithmInfoResponse, error)
	Benchmark(context.Context, *BenchmarkRequest) (*BenchmarkResponse, error)
	Blocks(context.Context, *BlocksRequest) (*BlocksResponse, error)
}

// RegisterEngineServiceServer registers srv on s.
func RegisterEngineServiceServer(s grpc.ServiceRegistrar, srv EngineServiceServer) {
	s.RegisterService(&EngineServiceDesc, srv)
}

// unaryHandler adapts a typed method into a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any](method string, call func(EngineServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EngineServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EngineServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EngineServiceDesc is the grpc.ServiceDesc for EngineService.
var EngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddBlock",
			Handler:    unaryHandler("AddBlock", EngineServiceServer.AddBlock),
		},
		{
			MethodName: "SwitchAlgorithm",
			Handler:    unaryHandler("SwitchAlgorithm", EngineServiceServer.SwitchAlgorithm),
		},
		{
			MethodName: "IsValid",
			Handler:    unaryHandler("IsValid", EngineServiceServer.IsValid),
		},
		{
			MethodName: "Stats",
			Handler:    unaryHandler("Stats", EngineServiceServer.Stats),
		},
		{
			MethodName: "AlgorithmInfo",
			Handler:    unaryHandler("AlgorithmInfo", EngineServiceServer.AlgorithmInfo),
		},
		{
			MethodName: "Benchmark",
			Handler:    unaryHandler("Benchmark", EngineServiceServer.Benchmark),
		},
		{
			MethodName: "Blocks",
			Handler:    unaryHandler("Blocks", EngineServiceServer.Blocks),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proofchain/v1/engine.proto",
}
