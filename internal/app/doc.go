// Package app assembles paydash from its configuration and runs it.
//
// New wires the components in dependency order:
//
//  1. OpenTelemetry providers and the ledger metrics
//  2. the source chain and the caching loader
//  3. the websocket hub, ledger service, health service and refresher
//  4. the chi router and the HTTP server
//
// Run starts the background work (hub loop, scheduled refresh, warm-up load),
// serves HTTP until the context is cancelled and then stops everything in
// reverse order.
//
//	application, err := app.New(cfg, logger, app.Options{Version: version})
//	if err != nil {
//		return err
//	}
//	return application.Run(ctx)
package app
