package biz

import (
	"fmt"

	"Touchline/internal/conf"
	"Touchline/pkg/apifootball"

	"github.com/go-kratos/kratos/v2/log"
)

// NewUpstreamClient builds the provider client from configuration.
// A missing API key or an unknown tier is a startup error.
func NewUpstreamClient(c *conf.Upstream, logger log.Logger) (*apifootball.Client, error) {
	if c == nil {
		return nil, fmt.Errorf("upstream configuration is missing")
	}

	tier, err := apifootball.ParseTier(c.Tier)
	if err != nil {
		return nil, err
	}

	return apifootball.NewClient(apifootball.Config{
		BaseURL:          c.BaseURL,
		APIKey:           c.APIKey,
		Tier:             tier,
		Timeout:          c.Timeout,
		ProxyURL:         c.ProxyURL,
		MaxAttempts:      c.MaxAttempts,
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     c.ResetTimeout,
	}, log.With(logger, "module", "apifootball"))
}
