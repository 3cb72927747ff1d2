package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hotfile-go/internal/container"
)

var errCheckFailed = errors.New("one or more watches failed")

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "hotfiled",
		Short:         "Keep data files loaded and reload them on change",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "hotfiled.yaml", "配置文件路径")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the reload daemon until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfgPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load the configuration and every watch once, then exit",
		Long: `Validate the configuration, read every configured watch once and print
its status. Exits non-zero when the configuration is invalid or any watch
failed to load.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.OutOrStdout(), cfgPath)
		},
	})

	return root
}

func run(ctx context.Context, cfgPath string) error {
	c, err := container.New(cfgPath)
	if err != nil {
		return err
	}
	if err := c.Build(); err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Stop()
		return err
	}

	log := c.Logger()
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", zap.Error(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return c.Stop()
}

func check(out io.Writer, cfgPath string) error {
	c, err := container.New(cfgPath)
	if err != nil {
		return err
	}
	if err := c.Build(); err != nil {
		return err
	}
	defer c.Stop()

	failed := false
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tEXISTS\tAUTO\tENTRIES\tSTATUS")
	for _, st := range c.Check() {
		status := "ok"
		if st.Err != nil {
			status = st.Err.Error()
			failed = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%d\t%s\n", st.Path, st.Kind, st.Exists, st.AutoReload, st.Entries, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed {
		return errCheckFailed
	}
	return nil
}
