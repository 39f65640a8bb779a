// Package services implements the business logic layer of paydash. It sits
// between the HTTP handlers and the source loader so that handlers never
// touch sources, caches or the normalization pipeline directly.
//
// # Available Services
//
//	- LedgerService: loads and normalizes the ledger, then summarizes,
//	  filters and exports it
//	- Refresher: reloads the ledger on a robfig/cron "@every" schedule
//	- HealthService: liveness and readiness reporting
//
// # Error Handling
//
// Load failures are returned as *errors.AppError values so handlers can map
// them to problem documents:
//
//	- every source failed: SOURCE (503)
//	- the chosen table had no records: NO_DATA (503)
//	- an out-of-order amount range: VALIDATION (400)
//
// # Refresh Notifications
//
// Refresh compares BLAKE2b fingerprints of the old and new raw tables and
// broadcasts MessageLedgerRefreshed through the WebSocketHub only when they
// differ.
//
// # Testing
//
// Services are tested by mocking the loader:
//
//	loader := &mockLoader{}
//	loader.On("Load", mock.Anything).Return(result, nil)
//	svc := NewLedgerService(loader, csvWriter, hub, nil, logger)
package services
