// Package inspect serves a live feed of ledger events for an external
// inspector UI.
//
// The server is an access observer: every read, key-read, write and
// delta-read is sent as JSON to each connected websocket client. Clients
// get their own bounded queue; events for a client whose queue is full are
// dropped rather than slowing the runtime down.
//
//	srv := inspect.New(inspect.WithGatherer(reg))
//	cancel := rt.Observe(srv)
//	defer cancel()
//	go http.ListenAndServe(":7070", srv.Handler())
//
// The feed only observes. It never changes or synchronizes store state.
package inspect
