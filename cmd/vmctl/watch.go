package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"visionmatch/internal/client"
)

func watchCmd(g *globals) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <requestId>...",
		Short: "Follow one or more negotiations until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := client.NewHub(g.client(),
				client.WithInterval(interval),
				client.WithLogger(g.logger),
			)
			defer hub.Close()

			type update struct {
				requestID string
				feed      client.Feed
			}
			updates := make(chan update)
			for _, id := range args {
				feeds, unsubscribe, err := hub.Subscribe(ctx, id)
				if err != nil {
					return fmt.Errorf("watch %s: %w", id, err)
				}
				defer unsubscribe()
				go func(id string, feeds <-chan client.Feed) {
					for f := range feeds {
						select {
						case updates <- update{requestID: id, feed: f}:
						case <-ctx.Done():
							return
						}
					}
				}(id, feeds)
			}

			out := cmd.OutOrStdout()
			printed := make(map[string]string)
			for {
				select {
				case <-ctx.Done():
					return nil
				case u := <-updates:
					printNew(out, u.requestID, &u.feed, printed, len(args) > 1)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "Poll interval")
	return cmd
}

// printNew prints the messages of f after the last one printed for the request.
func printNew(out io.Writer, requestID string, f *client.Feed, printed map[string]string, prefix bool) {
	start := 0
	if last, ok := printed[requestID]; ok {
		start = len(f.Messages)
		for i := range f.Messages {
			if f.Messages[i].ID == last {
				start = i + 1
				break
			}
		}
	}
	for i := start; i < len(f.Messages); i++ {
		if prefix {
			fmt.Fprintf(out, "%s ", requestID)
		}
		printMessage(out, &f.Messages[i])
	}
	if id := f.LastID(); id != "" {
		printed[requestID] = id
	}
}
