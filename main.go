// Command startmon reports process and thread starts as single text
// lines, one per event, by listening to the kernel's proc connector.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pturmel/startmon/monitor"
	"github.com/pturmel/startmon/netlink"
	"github.com/pturmel/startmon/proc"
	"github.com/pturmel/startmon/sigma"
)

var (
	execFlag   bool
	forkFlag   bool
	threadFlag bool
	rulesDir   string
)

func main() {
	root := &cobra.Command{
		Use:           "startmon",
		Short:         "Report process and thread starts from the kernel's proc connector",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().BoolVarP(&execFlag, "exec", "e", false, "report exec events")
	root.Flags().BoolVarP(&forkFlag, "fork", "f", false, "report fork events")
	root.Flags().BoolVarP(&threadFlag, "thread", "t", false, "also report thread-level forks and execs")
	root.Flags().StringVar(&rulesDir, "rules", "", "directory of Sigma rules to match against exec events")

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if !execFlag && !forkFlag {
		fmt.Fprintln(os.Stderr, "specify at least --exec or --fork")
		cmd.Usage()
		os.Exit(1)
	}

	sock, err := netlink.Dial()
	if err != nil {
		return err
	}
	defer sock.Close()

	// Best effort: without the filter the kernel just delivers more and
	// the classifier discards the rest.
	if err := sock.SetFilter(netlink.FilterProgram(forkFlag, execFlag)); err != nil {
		log.Warnf("running without in-kernel filtering: %v", err)
	}

	if err := sock.Subscribe(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	cfg := monitor.Config{Exec: execFlag, Fork: forkFlag, Thread: threadFlag}
	m := monitor.New(cfg, sock, proc.NewResolver(), os.Stdout)

	if rulesDir != "" {
		detector, err := sigma.NewDetector(rulesDir)
		if err != nil {
			return err
		}
		defer detector.Close()
		m.OnExec = func(pid uint32, cmdline string) {
			for _, match := range detector.CheckExec(ctx, pid, cmdline) {
				log.WithFields(log.Fields{
					"rule":     match.RuleID,
					"severity": match.Severity,
					"pid":      pid,
				}).Warnf("rule matched: %s", match.RuleTitle)
			}
		}
	}

	return m.Run(ctx)
}
