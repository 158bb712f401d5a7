package custodian

import (
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/client/config"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
)

// New builds the configured transport wrapped in the retry policy.
func New(cfg *config.Config, logger logging.Logger) (Client, error) {
	var (
		inner Client
		err   error
	)
	switch cfg.CustodianTransport {
	case config.TransportHTTP, "":
		inner, err = NewHTTPClient(cfg.CustodianEndpoint, cfg.CustodianToken, cfg.CustodianTimeout, nil)
	case config.TransportGRPC:
		inner, err = NewGRPCClient(cfg.CustodianEndpoint, cfg.CustodianToken, cfg.CustodianTimeout)
	default:
		return nil, fmt.Errorf("unknown custodian transport %q: %w", cfg.CustodianTransport, common.ErrorValidation)
	}
	if err != nil {
		return nil, err
	}
	return NewRetrying(inner, cfg.RetryBudget, DefaultBackoffBase, logger), nil
}
