package profile

// Tag is the build tag that compiles profiling in. It also names the
// default output subdirectory.
const Tag = `pprof`

// Profiler is a running profile.
type Profiler interface {
	Stop()
}

type settings struct {
	mode  string
	dir   string
	quiet bool
}

// Option configures [Start].
type Option func(*settings)

// WithMode selects the profiling mode, one of [Modes].
func WithMode(mode string) Option {
	return func(s *settings) { s.mode = mode }
}

// WithDir sets the directory profiles are written to.
func WithDir(dir string) Option {
	return func(s *settings) { s.dir = dir }
}

// WithQuiet suppresses the profiler's own start and stop messages.
func WithQuiet(quiet bool) Option {
	return func(s *settings) { s.quiet = quiet }
}

// Start begins profiling and returns the profile to stop. It returns a no-op
// when no mode is selected, the mode is unknown, or profiling is not
// compiled in. Stop is always safe to call.
func Start(opts ...Option) Profiler {
	var s settings

	for _, opt := range opts {
		opt(&s)
	}

	if s.mode == "" {
		return nop{}
	}

	return start(s)
}

type nop struct{}

func (nop) Stop() {}
