package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

// Operation names reported to middleware.
const (
	OperationGetFixtures         = "/touchline.v1.Fixtures/GetFixtures"
	OperationGetLiveMatches      = "/touchline.v1.Fixtures/GetLiveMatches"
	OperationGetUpcomingFixtures = "/touchline.v1.Fixtures/GetUpcomingFixtures"
	OperationGetTeamStatistics   = "/touchline.v1.Fixtures/GetTeamStatistics"
	OperationGetQuotaStatus      = "/touchline.v1.Fixtures/GetQuotaStatus"
	OperationGetUsage            = "/touchline.v1.Fixtures/GetUsage"
	OperationClearCache          = "/touchline.v1.Fixtures/ClearCache"
)

// RegisterFixtureHTTPServer mounts the fixtures routes on s.
func RegisterFixtureHTTPServer(s *http.Server, svc *FixtureService) {
	r := s.Route("/")
	r.GET("/v1/fixtures", handler(OperationGetFixtures, svc.GetFixtures))
	r.GET("/v1/fixtures/live", handler(OperationGetLiveMatches, svc.GetLiveMatches))
	r.GET("/v1/fixtures/upcoming", handler(OperationGetUpcomingFixtures, svc.GetUpcomingFixtures))
	r.GET("/v1/teams/{team}/statistics", handler(OperationGetTeamStatistics, svc.GetTeamStatistics))
	r.GET("/v1/quota", handler(OperationGetQuotaStatus, svc.GetQuotaStatus))
	r.GET("/v1/usage", handler(OperationGetUsage, svc.GetUsage))
	r.DELETE("/v1/cache", handler(OperationClearCache, svc.ClearCache))
}

// handler binds query and path variables into Req, runs the server middleware
// chain and writes the reply with the server's encoder.
func handler[Req any, Reply any](operation string, fn func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in Req
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*Req))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
