// Package splitrail provides a high-level library API for embedding
// the usage-statistics engine.
//
// This package is the primary integration point for external consumers
// such as dashboards, editor extensions, or status-bar widgets. It
// wraps the internal discovery, decode, and aggregation machinery into
// a clean, stable public API.
//
// # Concurrency Safety
//
// Splitrail keeps all state under a single state directory (see
// SPLITRAIL_HOME) and follows these concurrency rules:
//
//   - Stats() is lock-free and always safe. It returns the most
//     recently published snapshot and never blocks on a cycle in
//     flight.
//
//   - Refresh(), Rescan(), and Watch() serialize cycles internally.
//     A single Client may be shared by any number of goroutines.
//
//   - Multiple processes sharing one state directory never corrupt it:
//     every state file is written atomically and the last writer wins.
//     Run at most one Watch() loop per state directory; concurrent
//     watchers waste work re-decoding the same files.
//
// # Recommended Usage Pattern
//
//	// One-shot query (a prompt widget, a report)
//	client, err := splitrail.Open(ctx, splitrail.Options{})
//	if err != nil {
//	    return err
//	}
//	snap := client.Stats()
//	for date, day := range snap.Totals() {
//	    fmt.Println(date, day.Cost)
//	}
//
//	// Long-lived consumer (a dashboard)
//	go client.Watch(ctx)
//	for range ticker.C {
//	    render(client.Stats()) // always current, never blocks
//	}
package splitrail
