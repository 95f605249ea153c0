package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/share/pkg/protocol"
)

// serviceName and method names are the wire identifiers the client and
// server agree on; with no .proto file to generate stubs from, they
// are just string constants shared by client.go and service.go.
const (
	serviceName   = "share.v1.Coordinator"
	executeMethod = "Execute"
)

// Envelope is the request message for the single Execute RPC: a
// command plus whether the caller wants to block for its reply
// (mirrors Proxy.Call's wantResult flag).
type Envelope struct {
	Command *protocol.Command
	Wait    bool
}

// executor is implemented by Server; kept as an unexported interface
// so the generated-looking handler glue below has something concrete
// to assert against, the same indirection protoc-gen-go would emit.
type executor interface {
	Execute(context.Context, *Envelope) (*protocol.Reply, error)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a one-method "Coordinator" service. grpc.Server only
// needs a ServiceDesc and a codec capable of (un)marshaling whatever
// Go values the handler passes around - it does not require the
// messages to be protobuf.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*executor)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: executeMethod, Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/rpc/service.go",
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(executor).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/" + executeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(executor).Execute(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

func fullMethod() string { return "/" + serviceName + "/" + executeMethod }
