// Package http implements the REST handlers of the payment dashboard.
//
// Handlers stay thin: they parse the query, call a service interface and
// render JSON with go-chi/render. Every failure is written as an RFC 7807
// problem document by errors.ErrorHandler.
//
// Filters are passed as query parameters on every ledger route:
//
//	status     repeatable, exact work status match
//	mode       repeatable, exact payment mode match
//	min_final  inclusive lower bound on final_amount
//	max_final  inclusive upper bound on final_amount
//
// Routes:
//
//	GET  /api/health              liveness and the last load
//	GET  /api/health/ready        503 until the ledger loads
//	GET  /api/ledger              filtered rows and advisories
//	GET  /api/ledger/summary      KPI totals and groupings
//	GET  /api/ledger/export.csv   filtered_payment_data.csv download
//	POST /api/ledger/refresh      drop caches and reload
//	GET  /api/sources             cache stats and last attempts
//	POST /api/sources/probe       try every source once
package http
