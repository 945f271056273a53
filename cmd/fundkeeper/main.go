package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""
	// The app that holds all commands and flags.
	app *cli.App
)

func init() {
	app = cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "HD wallet funding service"
	app.Version = fmt.Sprintf("%s - %s ", gitCommit, gitDate)
	app.Flags = []cli.Flag{
		initDistFlag,
		contFundFlag,
		reclaimFlag,
		configFileFlag,
		rpcUrlFlag,
		accountsFlag,
		mnemonicFileFlag,
		verbosityFlag,
		metricsFlag,
	}
	app.Action = run
	app.Before = func(ctx *cli.Context) error {
		setupLogging(ctx)
		if ctx.Bool(metricsFlag.Name) {
			metrics.Enabled = true
		}
		return nil
	}
}

func setupLogging(ctx *cli.Context) {
	usecolor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(usecolor))
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(ctx.Int(verbosityFlag.Name)), handler))
}

// interruptContext returns a context cancelled on the first SIGINT/SIGTERM.
// Repeated interrupts while shutting down eventually force an exit.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		<-sigCh
		log.Info("Got interrupt, shutting down...")
		cancel()
		for i := 10; i > 0; i-- {
			<-sigCh
			if i > 1 {
				log.Warn("Already shutting down, interrupt more to force exit.", "times", i-1)
			}
		}
		os.Exit(1)
	}()
	return ctx, cancel
}

func run(ctx *cli.Context) error {
	modes := 0
	for _, flag := range []cli.BoolFlag{initDistFlag, contFundFlag, reclaimFlag} {
		if ctx.Bool(flag.Name) {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of --%s, --%s or --%s is required",
			initDistFlag.Name, contFundFlag.Name, reclaimFlag.Name)
	}

	config := makeAppConfig(ctx)
	engine, err := makeEngine(ctx, config)
	if err != nil {
		return err
	}

	switch {
	case ctx.Bool(initDistFlag.Name):
		return engine.RunInitDist(context.Background())
	case ctx.Bool(reclaimFlag.Name):
		return engine.RunReclaim(context.Background())
	default:
		runCtx, cancel := interruptContext()
		defer cancel()
		return engine.RunContFund(runCtx)
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
