// Package metrics exports runtime statistics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace("app"))
//	l := ledger.New(ledger.WithFailureHook(m.ObserverFailed))
//	g := derive.New(paths, l, broker, derive.WithRecorder(m))
//	m.TrackDeltaStates(broker.Len)
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
