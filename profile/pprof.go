//go:build pprof

package profile

import (
	"maps"
	"slices"
	"sync"

	"github.com/pkg/profile"

	_ "net/http/pprof" // register HTTP handlers
)

// Modes returns the supported profiling modes in sorted order.
var Modes = sync.OnceValue(
	func() []string {
		return slices.Sorted(maps.Keys(modes))
	},
)

var modes = map[string]func(*profile.Profile){
	"allocs":    profile.MemProfileAllocs,
	"block":     profile.BlockProfile,
	"clock":     profile.ClockProfile,
	"cpu":       profile.CPUProfile,
	"goroutine": profile.GoroutineProfile,
	"heap":      profile.MemProfileHeap,
	"mem":       profile.MemProfile,
	"mutex":     profile.MutexProfile,
	"thread":    profile.ThreadcreationProfile,
	"trace":     profile.TraceProfile,
}

func start(s settings) Profiler {
	mode, ok := modes[s.mode]
	if !ok {
		return nop{}
	}

	opts := []func(*profile.Profile){mode, profile.NoShutdownHook}

	if s.dir != "" {
		opts = append(opts, profile.ProfilePath(s.dir))
	}

	if s.quiet {
		opts = append(opts, profile.Quiet)
	}

	return profile.Start(opts...)
}
