package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agleyzer/hlslocalizer/internal/cluster"
	"github.com/agleyzer/hlslocalizer/internal/localizer"
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/agleyzer/hlslocalizer/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var (
		options      localizer.Options
		port         int
		raftID       string
		raftBind     string
		peers        []string
		raftLogLevel string
		raftDataDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  hlslocalizer serve --port 8080
  hlslocalizer serve --raft-id node1 --raft-bind 127.0.0.1:9001 --peers 127.0.0.1:9001,127.0.0.1:9002,127.0.0.1:9003`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port < 1 || port > 65535 {
				return fmt.Errorf("port must be between 1 and 65535")
			}

			logger := newLogger(cmd)
			logger.Info("hlslocalizer starting", "version", version)

			loc, err := localizer.New(nil, options, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var (
				store  registry.Store = registry.NewMemory()
				status server.ClusterStatus
			)

			if raftBind != "" || raftID != "" || len(peers) > 0 {
				manager, err := cluster.NewManager(cluster.Config{
					RaftID:    raftID,
					BindAddr:  raftBind,
					Peers:     peers,
					LogLevel:  raftLogLevel,
					LogOutput: cmd.ErrOrStderr(),
					DataDir:   raftDataDir,
				}, logger)
				if err != nil {
					return err
				}
				if err := manager.Start(ctx); err != nil {
					return fmt.Errorf("failed to start cluster: %w", err)
				}
				defer manager.Shutdown()

				store = manager
				status = manager
			}

			srv := server.New(store, loc, status, port, logger)

			logger.Info("API ready",
				"url", fmt.Sprintf("http://localhost:%d/items", port),
				"health", fmt.Sprintf("http://localhost:%d/health", port),
				"replicated", status != nil)

			if err := srv.Start(ctx); err != nil && err != context.Canceled {
				return err
			}

			logger.Info("hlslocalizer stopped")
			return nil
		},
	}

	addSelectionFlags(cmd, &options)
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&raftID, "raft-id", "", "Raft node ID (enables the replicated registry)")
	cmd.Flags().StringVar(&raftBind, "raft-bind", "", "Raft bind address (host:port)")
	cmd.Flags().StringSliceVar(&peers, "peers", nil, "Raft peer addresses including this node")
	cmd.Flags().StringVar(&raftLogLevel, "raft-log-level", "", "Raft library log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&raftDataDir, "raft-data-dir", "", "Directory for registry snapshots (default: memory only)")

	return cmd
}
