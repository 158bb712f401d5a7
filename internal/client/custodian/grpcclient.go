package custodian

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	pb "github.com/dmitrijs2005/saltkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCClient speaks the custodian gRPC service. The private link is already
// encrypted, so the connection uses insecure transport credentials.
type GRPCClient struct {
	conn    *grpc.ClientConn
	token   string
	timeout time.Duration
}

// NewGRPCClient dials target lazily. Extra options are appended after the
// defaults, e.g. a context dialer in tests.
func NewGRPCClient(target, token string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{token: token, timeout: timeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("custodian grpc client: %w", err)
	}
	c.conn = conn
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.token != "" {
		ctx = withAccessToken(ctx, c.token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return mapError(method, err)
	}
	return nil
}

func (c *GRPCClient) Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*StoreResult, error) {
	fields := map[string]any{
		pb.FieldSalt:    base64.StdEncoding.EncodeToString(salt),
		pb.FieldPurpose: purpose,
	}
	if expiresInDays != nil {
		fields[pb.FieldExpiresInDays] = *expiresInDays
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode store request: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.invoke(ctx, pb.MethodStore, in, out); err != nil {
		return nil, err
	}

	res := &StoreResult{SaltID: out.GetFields()[pb.FieldSaltID].GetStringValue()}
	if v := out.GetFields()[pb.FieldExpiresAt].GetStringValue(); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decode expiresAt: %v: %w", err, common.ErrorInternal)
		}
		res.ExpiresAt = &t
	}
	return res, nil
}

func (c *GRPCClient) Fetch(ctx context.Context, id string) (*Salt, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, pb.MethodFetch, wrapperspb.String(id), out); err != nil {
		return nil, err
	}

	f := out.GetFields()
	value, err := base64.StdEncoding.DecodeString(f[pb.FieldSalt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode salt: %v: %w", err, common.ErrorInternal)
	}
	created, err := time.Parse(time.RFC3339Nano, f[pb.FieldCreatedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode createdAt: %v: %w", err, common.ErrorInternal)
	}
	return &Salt{
		Value:       value,
		Purpose:     f[pb.FieldPurpose].GetStringValue(),
		CreatedAt:   created,
		AccessCount: int64(f[pb.FieldAccessCount].GetNumberValue()),
	}, nil
}

func (c *GRPCClient) Delete(ctx context.Context, id string) error {
	return c.invoke(ctx, pb.MethodDelete, wrapperspb.String(id), &emptypb.Empty{})
}

func (c *GRPCClient) Cleanup(ctx context.Context) (int64, error) {
	out := &wrapperspb.Int64Value{}
	if err := c.invoke(ctx, pb.MethodCleanup, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *GRPCClient) Stats(ctx context.Context) (map[string]int64, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, pb.MethodStats, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(out.GetFields()))
	for k, v := range out.GetFields() {
		counts[k] = int64(v.GetNumberValue())
	}
	return counts, nil
}

func (c *GRPCClient) Health(ctx context.Context) error {
	return c.invoke(ctx, pb.MethodHealth, &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func mapError(method string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %v: %w", method, err, common.ErrorUnavailable)
	}
	var kind error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = common.ErrorUnauthorized
	case codes.NotFound:
		kind = common.ErrorNotFound
	case codes.InvalidArgument:
		kind = common.ErrorValidation
	case codes.ResourceExhausted:
		// rejected by the rate limiting interceptor
		return fmt.Errorf("%s: %s: %w: %w", method, st.Code(), common.ErrorUnavailable, errNotDelivered)
	case codes.Unavailable, codes.DeadlineExceeded:
		kind = common.ErrorUnavailable
	case codes.Canceled:
		return fmt.Errorf("%s: %w", method, context.Canceled)
	default:
		kind = common.ErrorInternal
	}
	return fmt.Errorf("%s: %s: %w", method, st.Code(), kind)
}
