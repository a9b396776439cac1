// Command progress-client tails the line-delimited JSON progress stream
// served by `novelhub serve` and reconnects when the server goes away.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		addr    string
		pretty  bool
		stage   string
		backoff time.Duration
	)
	cmd := &cobra.Command{
		Use:          "progress-client",
		Short:        "Follow migration and sync progress events",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				With().Timestamp().Str("component", "progress-client").Logger()
			ctx := cmd.Context()
			for {
				err := tail(ctx, addr, cmd.OutOrStdout(), filter{stage: stage, pretty: pretty}, log)
				if ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Dur("retry_in", backoff).Msg("disconnected")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:7070", "progress stream address")
	f.BoolVar(&pretty, "pretty", true, "pretty print events")
	f.StringVar(&stage, "stage", "", "only print events for this stage")
	f.DurationVar(&backoff, "reconnect", time.Second, "delay between reconnect attempts")
	return cmd
}

type filter struct {
	stage  string
	pretty bool
}

func tail(ctx context.Context, addr string, w io.Writer, f filter, log zerolog.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	log.Info().Str("addr", addr).Msg("connected")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		if err := printLine(w, sc.Bytes(), f); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream closed")
}

func printLine(w io.Writer, line []byte, f filter) error {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		_, err := fmt.Fprintln(w, string(line))
		return err
	}
	if f.stage != "" {
		if s, _ := obj["stage"].(string); s != f.stage {
			return nil
		}
	}
	if !f.pretty {
		_, err := fmt.Fprintln(w, string(line))
		return err
	}
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
