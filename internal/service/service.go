// Package service exposes the fixtures usecase over HTTP.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewFixtureService)
