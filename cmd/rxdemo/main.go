package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/7vars/rxflow"
	"github.com/7vars/rxflow/internal/scenario"
	"github.com/7vars/rxflow/rx"
)

func main() {
	var (
		configFile = flag.String("config", "", "config file (yaml, json or toml)")
		strategy   = flag.String("strategy", "", "flattening strategy, overrides rxdemo.strategy")
		name       = flag.String("scenario", "", "scenario to run, overrides rxdemo.scenario")
	)
	flag.Parse()

	conf := rxflow.NewConfig("")
	if *configFile != "" {
		var err error
		if conf, err = rxflow.LoadConfig("", *configFile); err != nil {
			logrus.Fatalf("load config %s: %v", *configFile, err)
		}
	}
	if *strategy != "" {
		conf.Set("rxdemo.strategy", *strategy)
	}
	if *name != "" {
		conf.Set("rxdemo.scenario", *name)
	}
	rxflow.ConfigureLogging(conf)

	settings, err := scenario.FromConfig(conf)
	if err != nil {
		logrus.Fatal(err)
	}

	logger := rxflow.NewLogger().With(map[string]interface{}{
		"scenario": settings.Scenario,
		"strategy": settings.Strategy.String(),
	})

	switch conf.GetStringDefault("rxdemo.clock", "virtual") {
	case "real":
		err = runReal(settings, logger)
	default:
		err = runVirtual(settings, logger)
	}
	if err != nil {
		logger.Errorf("run failed: %v", err)
		os.Exit(1)
	}
}

func runVirtual(settings scenario.Settings, logger rxflow.Logger) error {
	deliveries, err := scenario.Simulate(settings, logger)
	for _, d := range deliveries {
		logger.With(map[string]interface{}{
			"click":     d.Click,
			"value":     d.Value,
			"at":        d.At,
			"delivered": d.Delivered,
		}).Info("event")
	}
	return err
}

func runReal(settings scenario.Settings, logger rxflow.Logger) error {
	sc, ok := scenario.Lookup(settings.Scenario)
	if !ok {
		return fmt.Errorf("unknown scenario %q, available: %v", settings.Scenario, scenario.Names())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := rx.NewClockScheduler(clockwork.NewRealClock(), rx.WithLogger(logger))
	defer sched.Close()

	env := scenario.Env{Settings: settings, Scheduler: sched, Logger: logger}
	events := rx.Pipe(sc(env), rx.SubscribeOn[scenario.Event](sched))
	return rx.ForEach(ctx, events, func(e scenario.Event) {
		logger.WithField("event", e.String()).Info("event")
	})
}
