package custodian

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server/auth"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
	grpcserver "github.com/dmitrijs2005/saltkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/saltkeeper/internal/server/repositories/salts"
	"github.com/dmitrijs2005/saltkeeper/internal/server/rest"
	"github.com/dmitrijs2005/saltkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "client-test-secret"

func serverConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = testSecret
	cfg.ReadRatePerMinute = 0
	cfg.WriteRatePerMinute = 0
	return cfg
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken("primary", []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func newService(cfg *config.Config) rest.SaltService {
	return services.NewSaltService(salts.NewMemoryRepository(), logging.Discard(), cfg)
}

func startHTTP(t *testing.T, tok string) Client {
	t.Helper()
	cfg := serverConfig()
	srv := httptest.NewServer(rest.NewServer(cfg, newService(cfg), logging.Discard()).Handler())
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, tok, 2*time.Second, srv.Client())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func startGRPC(t *testing.T, tok string) Client {
	t.Helper()
	cfg := serverConfig()
	lis := bufconn.Listen(1 << 20)
	s := grpcserver.NewGRPCServer(cfg, logging.Discard(), newService(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c, err := NewGRPCClient("passthrough:///bufnet", tok, 2*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

var transports = []struct {
	name  string
	start func(t *testing.T, tok string) Client
}{
	{"http", startHTTP},
	{"grpc", startGRPC},
}

func TestClient_StoreFetchDelete(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			c := tr.start(t, token(t))
			ctx := context.Background()
			salt := bytes.Repeat([]byte{0x5a}, 32)

			res, err := c.Store(ctx, salt, common.PurposeAnswers, nil)
			require.NoError(t, err)
			require.NotEmpty(t, res.SaltID)
			assert.Nil(t, res.ExpiresAt)

			got, err := c.Fetch(ctx, res.SaltID)
			require.NoError(t, err)
			assert.Equal(t, salt, got.Value)
			assert.Equal(t, common.PurposeAnswers, got.Purpose)
			assert.EqualValues(t, 1, got.AccessCount)
			assert.False(t, got.CreatedAt.IsZero())

			stats, err := c.Stats(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, stats[common.PurposeAnswers])

			require.NoError(t, c.Delete(ctx, res.SaltID))

			_, err = c.Fetch(ctx, res.SaltID)
			assert.ErrorIs(t, err, common.ErrorNotFound)
			assert.ErrorIs(t, c.Delete(ctx, res.SaltID), common.ErrorNotFound)
		})
	}
}

func TestClient_StoreWithExpiry(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			c := tr.start(t, token(t))
			days := 30

			res, err := c.Store(context.Background(), bytes.Repeat([]byte{1}, 16), common.PurposeSubscriberEmails, &days)
			require.NoError(t, err)
			require.NotNil(t, res.ExpiresAt)
			assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *res.ExpiresAt, time.Minute)
		})
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			ctx := context.Background()

			c := tr.start(t, token(t))
			_, err := c.Store(ctx, []byte("short"), common.PurposeAnswers, nil)
			assert.ErrorIs(t, err, common.ErrorValidation)

			_, err = c.Fetch(ctx, "00000000-0000-4000-8000-000000000000")
			assert.ErrorIs(t, err, common.ErrorNotFound)

			anon := tr.start(t, "")
			_, err = anon.Fetch(ctx, "00000000-0000-4000-8000-000000000000")
			assert.ErrorIs(t, err, common.ErrorUnauthorized)

			// health needs no credentials
			assert.NoError(t, anon.Health(ctx))
		})
	}
}

func TestClient_Cleanup(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			c := tr.start(t, token(t))
			n, err := c.Cleanup(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(url, "tok", time.Second, nil)
	require.NoError(t, err)

	err = c.Health(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnavailable)
	assert.ErrorIs(t, err, errNotDelivered, "connection refused never reached the custodian")
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewHTTPClient(srv.URL, "tok", 50*time.Millisecond, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "id")
	assert.ErrorIs(t, err, common.ErrorUnavailable)
	assert.NotErrorIs(t, err, errNotDelivered, "the request was sent")
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, common.ErrorUnauthorized},
		{http.StatusNotFound, common.ErrorNotFound},
		{http.StatusBadRequest, common.ErrorValidation},
		{http.StatusTooManyRequests, common.ErrorUnavailable},
		{http.StatusBadGateway, common.ErrorUnavailable},
		{http.StatusTeapot, common.ErrorInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.ErrorIs(t, statusError("GET", "/x", tt.code), tt.want)
		})
	}
}

func TestHTTPClient_OnlyRateLimitIsNotDelivered(t *testing.T) {
	assert.ErrorIs(t, statusError("POST", "/salts", http.StatusTooManyRequests), errNotDelivered)
	for _, code := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError} {
		assert.NotErrorIs(t, statusError("POST", "/salts", code), errNotDelivered, code)
	}
}

func TestGRPCClient_MapError(t *testing.T) {
	err := mapError("Store", status.Error(codes.ResourceExhausted, "rate_limited"))
	assert.ErrorIs(t, err, common.ErrorUnavailable)
	assert.ErrorIs(t, err, errNotDelivered)

	for _, code := range []codes.Code{codes.Unavailable, codes.DeadlineExceeded} {
		err := mapError("Store", status.Error(code, "x"))
		assert.ErrorIs(t, err, common.ErrorUnavailable, code.String())
		assert.NotErrorIs(t, err, errNotDelivered, code.String())
	}

	assert.ErrorIs(t, mapError("Fetch", status.Error(codes.Canceled, "x")), context.Canceled)
	assert.NoError(t, mapError("Fetch", nil))
}

func TestNewHTTPClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("10.8.0.2:8081", "", time.Second, nil)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
