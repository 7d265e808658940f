// Package app is the composition root of logdeck.
//
// # Two-Phase Initialization
//
// New constructs every service from the configuration: the event store, the
// MDC suggestion index, the diagnostic context filter, the ingestion
// dispatcher, the liveness watchdog (which probes the dispatcher loop) and
// one producer per configured source.
// Nothing subscribes to anything during construction.
//
// Start then wires the subscriptions in a fixed order:
//
//  1. Index.Start(Store), so the index sees every stored batch and reset
//  2. Dispatcher.AddDestination("store", Store)
//  3. Each producer's Start
//
// Services are passed explicitly; there are no package-level singletons.
//
// # Data Flow
//
//	producers ──Enqueue──> Dispatcher ──batches──> Store ──OnAdded──> Index
//	 (listener, poll,        │                       │
//	  files, kafka)          └──batches──> /ws viewers└──> UI (dirty flag + tick)
//
// # Shutdown
//
// Serve runs the dispatcher and watchdog loops next to a front end (the TUI,
// or a wait on the context in headless mode). When the front end returns,
// producers are stopped first and the loops are cancelled after, so the
// dispatcher's final flush sees everything the producers enqueued.
//
// # Logging
//
// In headless mode logs go to stderr. While the TUI runs they go to the
// configured log file, since the terminal belongs to the UI.
package app
