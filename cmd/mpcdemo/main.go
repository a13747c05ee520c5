package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"shooting-mpc-core/utils"
)

func main() {
	var (
		scenPath = flag.String("scenario", "", "Scenario JSON file (uses built-in defaults if empty)")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile  = flag.String("logfile", "mpcdemo.log", "Path to the log file")
	)
	flag.Parse()

	level := parseLevel(*logLevel)

	log, err := utils.NewFileLogger(*logFile, level, true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	var scen DemoScenario
	if *scenPath == "" {
		scen = DefaultScenario()
	} else {
		scen, err = LoadScenario(*scenPath)
		if err != nil {
			log.Critical("load scenario: %v", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(scen, log)
	if err != nil {
		log.Critical("startup failed: %v", err)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Critical("run failed: %v", err)
		os.Exit(1)
	}
}

func parseLevel(s string) utils.LogLevel {
	switch s {
	case "trace":
		return utils.TRACE
	case "debug":
		return utils.DEBUG
	case "info":
		return utils.INFO
	case "warn", "warning":
		return utils.WARN
	case "error":
		return utils.ERROR
	case "critical":
		return utils.CRITICAL
	default:
		return utils.INFO
	}
}
