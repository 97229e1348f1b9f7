// Package derive runs derived computations and re-runs them when the
// store paths they read are written.
//
// A derived node learns its dependencies by registering a collector on
// the access ledger for the duration of each run. Reads and key-reads
// become exact subscriptions; delta-reads become subtree subscriptions.
// A write to a path wakes:
//
//   - exact subscribers of the path or of any path below it
//   - subtree subscribers of the path or of any of its ancestors
//
// Woken nodes are queued in depth order and drained in one loop, owners
// before the nodes they own and earlier declarations first. A node never
// schedules itself.
//
// Nodes declared inside a run are owned by the running node. Strong
// children that a re-run of the owner does not declare again are
// disposed; Weak children live as long as the owner; Detached nodes are
// roots.
//
//	g := derive.New(store.Paths(), store.Ledger(), store.Broker())
//	n := g.Derive(func() {
//	    total = sum(cart)
//	}, derive.Options{Name: "total"})
//	defer n.Dispose()
package derive
