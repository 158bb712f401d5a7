package grpc

import (
	"context"
	"encoding/base64"
	"math"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	pb "github.com/dmitrijs2005/saltkeeper/internal/proto"
	"github.com/dmitrijs2005/saltkeeper/internal/server/rest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type handler struct {
	salts  rest.SaltService
	logger logging.Logger
}

// toStatus maps the error taxonomy onto gRPC codes. Messages carry the kind
// only.
func (h *handler) toStatus(ctx context.Context, method string, err error) error {
	kind := common.KindOf(err)
	switch kind {
	case common.KindValidation:
		return status.Error(codes.InvalidArgument, kind.String())
	case common.KindUnauthorized:
		return status.Error(codes.Unauthenticated, "unauthorized")
	case common.KindNotFound:
		return status.Error(codes.NotFound, kind.String())
	default:
		h.logger.Error(ctx, "request failed", "method", method, "error", err)
		return status.Error(codes.Internal, common.KindInternal.String())
	}
}

// expiresInDays accepts an absent or null value, or a whole number. Any other
// kind is rejected rather than read as zero, which would mean no expiry.
func expiresInDays(v *structpb.Value) (*int, error) {
	if v == nil {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return nil, status.Error(codes.InvalidArgument, common.KindValidation.String())
		}
		d := int(n)
		return &d, nil
	default:
		return nil, status.Error(codes.InvalidArgument, common.KindValidation.String())
	}
}

func (h *handler) Store(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	var salt []byte
	if v, ok := fields[pb.FieldSalt]; ok {
		b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, common.KindValidation.String())
		}
		salt = b
	}

	days, err := expiresInDays(fields[pb.FieldExpiresInDays])
	if err != nil {
		return nil, err
	}

	s, err := h.salts.Store(ctx, salt, fields[pb.FieldPurpose].GetStringValue(), days)
	if err != nil {
		return nil, h.toStatus(ctx, pb.MethodStore, err)
	}

	out := map[string]any{pb.FieldSaltID: s.ID, pb.FieldExpiresAt: nil}
	if s.ExpiresAt != nil {
		out[pb.FieldExpiresAt] = s.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(out)
}

func (h *handler) Fetch(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	s, err := h.salts.Fetch(ctx, in.GetValue())
	if err != nil {
		return nil, h.toStatus(ctx, pb.MethodFetch, err)
	}
	return structpb.NewStruct(map[string]any{
		pb.FieldSalt:        base64.StdEncoding.EncodeToString(s.Value),
		pb.FieldPurpose:     s.Purpose,
		pb.FieldCreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339Nano),
		pb.FieldAccessCount: s.AccessCount,
	})
}

func (h *handler) Delete(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := h.salts.Delete(ctx, in.GetValue()); err != nil {
		return nil, h.toStatus(ctx, pb.MethodDelete, err)
	}
	return &emptypb.Empty{}, nil
}

func (h *handler) Cleanup(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := h.salts.CleanupExpired(ctx)
	if err != nil {
		return nil, h.toStatus(ctx, pb.MethodCleanup, err)
	}
	return wrapperspb.Int64(n), nil
}

func (h *handler) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	counts, err := h.salts.Stats(ctx)
	if err != nil {
		return nil, h.toStatus(ctx, pb.MethodStats, err)
	}
	out := make(map[string]any, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return structpb.NewStruct(out)
}

func (h *handler) Health(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.salts.Ping(ctx); err != nil {
		h.logger.Warn(ctx, "health check failed", "error", err)
		return nil, status.Error(codes.Unavailable, "unavailable")
	}
	return &emptypb.Empty{}, nil
}
