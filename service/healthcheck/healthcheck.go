// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package healthcheck

import (
	"context"
	"net/http"

	"github.com/alexliesenfeld/health"
)

func HandleHealthCheckRequest(checkFunc func(context.Context) error) {
	healthChecker := health.NewChecker(
		health.WithCheck(health.Check{
			Name:  "tally-health",
			Check: checkFunc,
		}),
	)

	http.Handle("/health", health.NewHandler(healthChecker))
}
