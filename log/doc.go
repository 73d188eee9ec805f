// Package log provides the leveled logging seam for the agent graph
// runtime.
//
// The graph engine logs routing detail at Debug (nodes added, runs skipped)
// and input reducer failures (duplicate scalar inputs, run id mismatches) at
// Warn; it logs nothing at Info or Error. Components tag their
// messages through Component, so one sink can interleave subsystems
// distinguishably:
//
//	logger := log.NewStdLogger(os.Stderr, log.LevelDebug)
//	log.SetDefault(logger)
//	// graph engine messages now appear as:
//	// 2026/08/01 10:30:00 DEBUG agentgraph: [graph] node user skipping run ...
//
// Levels can come from configuration:
//
//	level, err := log.ParseLevel("warn")
//	if err != nil {
//		level = log.LevelWarn
//	}
//	log.SetDefault(log.New(level))
//
// # golog Integration
//
// For applications already using `github.com/kataras/golog`, GologLogger
// forwards through golog's formatted methods and delegates level gating to
// the golog instance itself:
//
//	glogger := golog.New()
//	logger := log.NewGologLogger(glogger)
//	logger.SetLevel(log.LevelDebug) // sets the golog level
//
// # Custom Loggers
//
// Any type with printf-style Debug/Info/Warn/Error methods satisfies
// Logger; pass it to GraphAgent.SetLogger or log.SetDefault.
package log
