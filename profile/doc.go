// Package profile starts optional runtime profiling of the twine command
// through [github.com/pkg/profile].
//
// Profiling is compiled in only with the "pprof" build tag:
//
//	go build -tags pprof -o twine .
//
// Without the tag, [Start] always returns a no-op [Profiler] and [Modes]
// reports nothing, so callers never need their own build constraints.
//
// With the tag, the following modes are available:
//
//   - allocs:    memory allocation profiling (all allocations)
//   - block:     blocking profiling
//   - clock:     wall-clock profiling
//   - cpu:       CPU profiling
//   - goroutine: goroutine profiling
//   - heap:      live heap profiling
//   - mem:       general memory profiling
//   - mutex:     mutex contention profiling
//   - thread:    thread creation profiling
//   - trace:     execution trace
//
// Profiles are written to the configured directory, named after the mode
// (cpu.pprof, mem.pprof, ...), and are read with go tool pprof:
//
//	twine --pprof-mode cpu render page.twig
//	go tool pprof -http=: ~/.cache/twine/pprof/cpu.pprof
package profile
