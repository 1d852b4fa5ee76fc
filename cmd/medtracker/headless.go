package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/credential"
	appsync "github.com/nhle/medtracker/internal/sync"
)

// errNoSession is returned by headless mode when no token is stored.
var errNoSession = errors.New("no stored session: sign in once with the terminal UI")

// runHeadless polls and fires reminders until SIGINT or SIGTERM. Pass
// results are logged; reminders reach the user through sound and desktop
// notifications.
func runHeadless(
	client *api.Client,
	tokens *credential.Store,
	poller *appsync.Poller,
	log *zap.Logger,
) error {
	token, err := tokens.Token()
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return errNoSession
		}
		return fmt.Errorf("reading token: %w", err)
	}
	client.SetToken(token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("headless reminders started", zap.String("api", client.BaseURL()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(ctx)
	})
	g.Go(func() error {
		return logResults(ctx, poller.Results(), log)
	})

	err = g.Wait()
	log.Info("headless reminders stopped")
	return err
}

// logResults reports each pass. An expired session ends the run since no
// later pass can succeed without signing in again.
func logResults(ctx context.Context, results <-chan appsync.PollResultMsg, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-results:
			switch {
			case res.AuthError != nil:
				log.Error("session rejected", zap.String("message", res.AuthError.Message))
				return errNoSession
			case res.Error != nil:
				log.Warn("poll pass failed", zap.Error(res.Error), zap.Bool("stale", res.Stale))
			default:
				log.Debug("poll pass complete",
					zap.String("day", res.Day),
					zap.Int("pending", len(res.Pending)),
					zap.Int("fired", len(res.Fired)),
					zap.Int("auto_missed", res.AutoMissed),
				)
			}
			for _, n := range res.Fired {
				log.Info("reminder", zap.String("message", n.Message))
			}
		}
	}
}
