package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Stream is the server side of a server-streaming call.
type Stream[T any] interface {
	Send(*T) error
	Context() context.Context
}

type serverStream[T any] struct {
	grpc.ServerStream
}

func (s serverStream[T]) Send(m *T) error { return s.SendMsg(m) }

// Receiver is the client side of a server-streaming call.
type Receiver[T any] struct {
	stream grpc.ClientStream
}

// Recv blocks for the next message. It returns io.EOF once the server ends
// the stream.
func (r *Receiver[T]) Recv() (*T, error) {
	m := new(T)
	if err := r.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func unary[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

func serverStreaming[S, Req, Resp any](method string, fn func(S, *Req, Stream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(srv.(S), in, serverStream[Resp]{stream})
		},
	}
}

func invoke[Resp, Req any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Resp, Req any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req) (*Receiver[Resp], error) {
	s, err := cc.NewStream(ctx, desc, method, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := s.SendMsg(in); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return &Receiver[Resp]{stream: s}, nil
}
