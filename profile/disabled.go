//go:build !pprof

package profile

// Modes reports no modes when profiling is not compiled in.
func Modes() []string { return nil }

func start(settings) Profiler { return nop{} }
