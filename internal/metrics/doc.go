// Package metrics exposes calculation outcomes and native call latency to
// Prometheus. Metrics satisfies calc.Recorder, and ObserveNativeCall has the
// shape native.WithCallObserver expects.
package metrics
