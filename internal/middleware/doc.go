// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - PrometheusMetrics: request count and latency per route pattern

Requests are labelled with the chi route pattern (for example
/api/robots/{id}/status) rather than the raw path, so robot ids do not
create new series. Requests that match no route are labelled "unmatched".

Usage:

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
