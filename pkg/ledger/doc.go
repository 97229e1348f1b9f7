// Package ledger provides the access ledger: a synchronous broadcast bus
// that tells every registered observer which store paths are read,
// key-read, written, or delta-read.
//
// Derived computations register an observer for the duration of a run to
// collect their dependencies; debugging tools register one for as long
// as they are attached.
//
//	l := ledger.New()
//	h := l.Register(ledger.Funcs{
//	    Write: func(p *path.Path) { fmt.Println("wrote", p) },
//	})
//	defer l.Unregister(h)
//
// A panicking observer is recovered and logged; sibling observers and the
// triggering mutation are unaffected.
package ledger
