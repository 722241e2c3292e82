package replicate

import (
	"context"

	"github.com/vskvj3/linkd/internal/utils"
	"google.golang.org/grpc"
)

const serviceName = "linkd.Replication"

const (
	replicateMethod = "/" + serviceName + "/Replicate"
	forwardMethod   = "/" + serviceName + "/Forward"
	syncMethod      = "/" + serviceName + "/Sync"
)

// ReplicationService is served by every node. Followers receive Replicate
// calls, the leader receives Forward and Sync calls.
type ReplicationService interface {
	Replicate(ctx context.Context, cmd *Command) (*Ack, error)
	Forward(ctx context.Context, cmd *Command) (*utils.Response, error)
	Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
}

// RegisterReplicationService registers srv on s.
func RegisterReplicationService(s grpc.ServiceRegistrar, srv ReplicationService) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReplicationService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Replicate",
			Handler:    replicateHandler,
		},
		{
			MethodName: "Forward",
			Handler:    forwardHandler,
		},
		{
			MethodName: "Sync",
			Handler:    syncHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkd/replication",
}

func replicateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Command)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicationService).Replicate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: replicateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplicationService).Replicate(ctx, req.(*Command))
	}
	return interceptor(ctx, in, info, handler)
}

func forwardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Command)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicationService).Forward(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: forwardMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplicationService).Forward(ctx, req.(*Command))
	}
	return interceptor(ctx, in, info, handler)
}

func syncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SyncRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicationService).Sync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: syncMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplicationService).Sync(ctx, req.(*SyncRequest))
	}
	return interceptor(ctx, in, info, handler)
}
