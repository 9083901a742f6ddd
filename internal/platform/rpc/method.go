// Package rpc builds gRPC service descriptors whose messages are the well-known
// google.protobuf.Struct and Empty types, so services need no generated stubs.
package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Func handles one unary call. srv is the implementation passed to RegisterService.
type Func func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error)

// Method returns the descriptor for serviceName/name. The interceptor chain sees the
// full method name and the decoded request, as with generated handlers.
func Method(serviceName, name string, fn Func) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(srv, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns "/serviceName/name".
func FullMethod(serviceName, name string) string {
	return "/" + serviceName + "/" + name
}

// String returns the string field key of in, or "".
func String(in *structpb.Struct, key string) string {
	if v, ok := in.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Number returns the numeric field key of in, or 0.
func Number(in *structpb.Struct, key string) float64 {
	if v, ok := in.GetFields()[key]; ok {
		return v.GetNumberValue()
	}
	return 0
}

// Struct converts m to a Struct. Times are encoded as RFC 3339 strings.
func Struct(m map[string]any) (*structpb.Struct, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				out[k] = nil
				continue
			}
			out[k] = t.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			out[k] = t.String()
		default:
			out[k] = v
		}
	}
	return structpb.NewStruct(out)
}
