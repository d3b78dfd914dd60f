package commands

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeney/ups-guardian/internal/config"
	"github.com/sweeney/ups-guardian/internal/hidtransport"
	"github.com/sweeney/ups-guardian/internal/hidtransport/gousb"
	"github.com/sweeney/ups-guardian/internal/hidups"
	"github.com/sweeney/ups-guardian/internal/hidups/megatec"
	"github.com/sweeney/ups-guardian/internal/hidups/voltronic"
	"github.com/sweeney/ups-guardian/internal/notify/wall"
	"github.com/sweeney/ups-guardian/internal/poller"
	"github.com/sweeney/ups-guardian/internal/powerctl/logind"
	"github.com/sweeney/ups-guardian/internal/resumesignal"
	"github.com/sweeney/ups-guardian/internal/supervisor"
	"github.com/sweeney/ups-guardian/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the poller and power-loss supervisor in the foreground",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, "./config.toml")
	if err != nil {
		return exitError{code: exitConfigErr, err: fmt.Errorf("loading config: %w", err)}
	}

	log.Printf("ups-guardian starting (device: %s vid=%#04x pid=%#04x, hibernate=%v)",
		cfg.Device.Model, cfg.Device.VendorID, cfg.Device.ProductID, cfg.Shutdown.Hibernate)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	opener := gousb.NewOpener()
	defer closeLogged("USB context", opener.Close)

	identity := hidtransport.Identity{
		VendorID:  cfg.Device.VendorID,
		ProductID: cfg.Device.ProductID,
		UsagePage: cfg.Device.HIDUsagePage,
		UsageID:   cfg.Device.HIDUsageID,
	}

	wrap, err := dialectWrapper(cfg.Device.Model)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()

	p := poller.New(poller.OpenDialect(opener, identity, wrap), poller.Config{
		PollInterval:       cfg.Poll.Interval.Duration,
		PollFailureTimeout: cfg.Poll.FailureTimeout.Duration,
		Metrics:            metrics,
	})

	notifier, err := wall.New()
	if err != nil {
		return fmt.Errorf("connecting notifier: %w", err)
	}
	defer closeLogged("notifier bus connection", notifier.Close)

	power, err := logind.New(ctx)
	if err != nil {
		return fmt.Errorf("connecting power controller: %w", err)
	}
	defer closeLogged("power controller", power.Close)

	resume := resumesignal.New()

	s := supervisor.New(p.Cell(), resume, notifier, power, supervisor.Config{
		Hibernate:          cfg.Shutdown.Hibernate,
		ShutdownTimeout:    cfg.Shutdown.ShutdownTimeout.Duration,
		ServiceDisplayName: cfg.Service.DisplayName,
		Metrics:            metrics,
	})

	// Four goroutines share ctx; the first one to return unblocks the
	// others by cancelling ctx, the same fan-out-then-select shape the
	// supervisor itself uses internally for its own concurrent watches.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errs := make(chan error, 4)
	go func() { errs <- labeled("poller", p.Run(runCtx)) }()
	go func() { errs <- labeled("supervisor", s.Run(runCtx)) }()
	go func() { errs <- labeled("resume watcher", logind.WatchResume(runCtx, power.Conn(), resume)) }()
	go func() { errs <- labeled("telemetry server", metrics.Serve(runCtx, cfg.Telemetry.ListenAddress)) }()

	first := <-errs
	signalled := ctx.Err() != nil
	stop()
	// Drain the rest so their goroutines don't leak past this function
	// returning.
	for i := 0; i < 3; i++ {
		<-errs
	}

	if first != nil && !signalled {
		return first
	}
	log.Printf("ups-guardian exiting")
	return nil
}

func labeled(name string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func dialectWrapper(model config.Model) (func(hidtransport.Device) hidups.Ups, error) {
	switch model {
	case config.ModelVoltronic:
		return func(d hidtransport.Device) hidups.Ups {
			return voltronic.New(hidups.NewSession(d))
		}, nil
	case config.ModelMegatec:
		return func(d hidtransport.Device) hidups.Ups {
			return megatec.New(d)
		}, nil
	default:
		return nil, fmt.Errorf("unknown device model %q", model)
	}
}

func closeLogged(what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Printf("closing %s: %v", what, err)
	}
}
