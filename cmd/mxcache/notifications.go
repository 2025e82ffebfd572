package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNotificationsCommand(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Read, acknowledge and follow a user's notifications",
	}
	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "recipient user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "unread",
			Short: "List unread notifications, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rows, err := a.container.Feed().Unread(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, n := range rows {
					fmt.Fprintf(out, "%s\t%s\tactor=%d\t%s %d\t%s\n",
						n.ID, n.Verb, n.ActorID, n.ActionType, n.ActionID, n.CreatedAt.Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "read <uuid>",
			Short: "Mark one notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return errors.Mark(errors.Wrapf(err, "invalid notification id %q", args[0]), errUsage)
				}
				return a.container.Feed().MarkRead(cmd.Context(), userID, id)
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every unread notification as read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := a.container.Feed().MarkAllRead(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %d read\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print notifications for the user as they are published",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.watch(cmd, userID)
			},
		},
	)
	return cmd
}

func (a *app) watch(cmd *cobra.Command, userID int64) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	logger := a.container.Logger()

	if addr := a.container.Config().Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(a.container.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	hub := a.container.Hub()
	session := hub.Join(userID)
	defer hub.Leave(session)

	errc := make(chan error, 1)
	if broker := a.container.Broker(); broker != nil {
		go func() { errc <- broker.Run(ctx, nil) }()
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case msg, ok := <-session.C:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "[%s] %s (%s)\n", msg.Key, msg.Msg, msg.IDValue)
		}
	}
}
