package gateway

import (
	"go.uber.org/fx"

	"nextt-backend/pkg/config"
)

var Module = fx.Module("gateway.client",
	fx.Provide(NewClient),
)

// NewClient builds the gateway client from application config. Missing
// credentials fail application startup rather than the first payment.
func NewClient(cfg *config.Config) (*Client, error) {
	return New(Config{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		Email:       cfg.Gateway.Email,
		Password:    cfg.Gateway.Password,
		TwoFASecret: cfg.Gateway.TwoFASecret,
		FrontendURL: cfg.FrontendURL,
		BackendURL:  cfg.BackendURL,
		Timeout:     cfg.Gateway.Timeout,
	})
}
