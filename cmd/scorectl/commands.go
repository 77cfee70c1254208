package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/archive"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/engine"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/projection"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// ErrNoInnings is returned when --match or --inning is missing
var ErrNoInnings = errors.New("--match and --inning are required")

type rootOptions struct {
	redisURL     string
	changeStream string
	archiveDSN   string
	matchID      string
	inning       int
	summary      bool
	timeout      time.Duration
	verbose      bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "scorectl",
		Short: "Operate live innings: start, score, recompute, archive",
		Long: `scorectl drives the recalculation engine directly against the live store.

Commands:
  start     Start an innings
  submit    Append one ball
  recalc    Recompute an innings from its stored history
  target    Set the chase target
  show      Print the current state
  archive   Close an innings and copy it to the archive
  replay    Replay a ball list offline and print the final state`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6380"), "live store URL")
	flags.StringVar(&opts.changeStream, "change-stream", envOr("CHANGE_STREAM", store.DefaultChangeStream), "change stream name")
	flags.StringVar(&opts.archiveDSN, "archive-dsn", os.Getenv("ARCHIVE_DSN"), "archive database DSN")
	flags.StringVarP(&opts.matchID, "match", "m", "", "match id")
	flags.IntVarP(&opts.inning, "inning", "i", 0, "innings number")
	flags.BoolVarP(&opts.summary, "summary", "s", false, "print a one-line summary instead of JSON")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "operation timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		newStartCommand(opts),
		newSubmitCommand(opts),
		newRecalcCommand(opts),
		newTargetCommand(opts),
		newShowCommand(opts),
		newArchiveCommand(opts),
		newReplayCommand(opts),
	)
	return root
}

func newStartCommand(opts *rootOptions) *cobra.Command {
	var overs, target int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an innings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ictx := models.InningsContext{OversLimit: overs}
			if target > 0 {
				ictx.Target = &target
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.StartInnings(ctx, key, ictx)
			})
		},
	}
	cmd.Flags().IntVar(&overs, "overs", 20, "overs limit, 0 for unlimited")
	cmd.Flags().IntVar(&target, "target", 0, "chase target, 0 for none")
	return cmd
}

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <ball-json|->",
		Short: "Append one ball, given as JSON or read from stdin with -",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(args[0])
			if args[0] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading ball: %w", err)
				}
				body = b
			}
			var raw ingest.RawBall
			if err := json.Unmarshal(body, &raw); err != nil {
				return fmt.Errorf("decoding ball: %w", err)
			}
			d, err := ingest.Normalize(raw)
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.Recalculate(ctx, key, &d)
			})
		},
	}
}

func newRecalcCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc",
		Short: "Recompute an innings from its stored history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.Recalculate(ctx, key, nil)
			})
		},
	}
}

func newTargetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "target <runs>",
		Short: "Set the chase target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("target must be a number: %w", err)
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.SetTarget(ctx, key, runs)
			})
		},
	}
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.State(ctx, key)
			})
		},
	}
}

func newArchiveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Close an innings and copy it to the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.archiveDSN == "" {
				return errors.New("--archive-dsn or ARCHIVE_DSN is required")
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error) {
				return e.Archive(ctx, key)
			})
		},
	}
}

func newReplayCommand(opts *rootOptions) *cobra.Command {
	var overs, target int
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a JSON ball list through an in-memory store and print the final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening replay file: %w", err)
			}
			defer f.Close()

			ictx := models.InningsContext{OversLimit: overs}
			if target > 0 {
				ictx.Target = &target
			}
			state, err := replay(cmd.Context(), f, ictx, opts.logger(cmd))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), state)
		},
	}
	cmd.Flags().IntVar(&overs, "overs", 20, "overs limit, 0 for unlimited")
	cmd.Flags().IntVar(&target, "target", 0, "chase target, 0 for none")
	return cmd
}

// replay scores every ball of r into a fresh in-memory innings. Balls without
// a position are placed in the over in progress.
func replay(ctx context.Context, r io.Reader, ictx models.InningsContext, logger *slog.Logger) (models.DerivedInningsState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	balls, err := ingest.DecodeBalls(r)
	if err != nil {
		return models.DerivedInningsState{}, err
	}

	key := models.InningsKey{MatchID: "replay", Inning: 1}
	e := engine.New(store.NewMemoryStore(), engine.WithLogger(logger))
	state, err := e.StartInnings(ctx, key, ictx)
	if err != nil {
		return models.DerivedInningsState{}, err
	}

	for i, raw := range balls {
		if raw.OverNumber == nil && raw.OverLabel == "" {
			over := state.LegalBallCount / models.BallsPerOver
			raw.OverNumber = &over
		}
		d, err := ingest.Normalize(raw)
		if err != nil {
			return models.DerivedInningsState{}, fmt.Errorf("ball %d: %w", i, err)
		}
		state, err = e.Recalculate(ctx, key, &d)
		if err != nil {
			return models.DerivedInningsState{}, fmt.Errorf("ball %d: %w", i, err)
		}
	}
	return state, nil
}

type operation func(ctx context.Context, e *engine.Engine, key models.InningsKey) (models.DerivedInningsState, error)

// withEngine connects to the live store (and the archive when configured),
// runs op and prints the resulting state
func (o *rootOptions) withEngine(cmd *cobra.Command, op operation) error {
	if o.matchID == "" || o.inning == 0 {
		return ErrNoInnings
	}
	key := models.InningsKey{MatchID: o.matchID, Inning: o.inning}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()

	redisOpts, err := redis.ParseURL(o.redisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()

	logger := o.logger(cmd)
	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if o.archiveDSN != "" {
		pg, err := archive.NewPostgres(o.archiveDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithArchiver(pg))
	}

	st := store.NewRedisStore(client, store.RedisOptions{ChangeStream: o.changeStream})
	state, err := op(ctx, engine.New(st, engineOpts...), key)
	if err != nil {
		return err
	}
	return o.print(cmd.OutOrStdout(), state)
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) print(w io.Writer, state models.DerivedInningsState) error {
	if o.summary {
		_, err := fmt.Fprintln(w, summarize(state))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

// summarize renders "m1/1 v7  12/1 (1.0 ov)  CRR 12.00  RRR 7.50  P'ship 6(4)"
func summarize(s models.DerivedInningsState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d  %d/%d (%s ov)  CRR %s",
		s.Key(), s.Version, s.TotalRuns, s.TotalWickets, s.OversDisplay, projection.FormatRate(s.CurrentRunRate))
	if s.RequiredRunRate != nil {
		fmt.Fprintf(&b, "  RRR %s", projection.FormatRate(*s.RequiredRunRate))
	}
	if s.RunsNeeded != nil && s.RemainingBalls != nil {
		fmt.Fprintf(&b, "  need %d off %d", *s.RunsNeeded, *s.RemainingBalls)
	}
	fmt.Fprintf(&b, "  P'ship %s", projection.FormatPartnership(s.CurrentPartnership))
	if s.LastWicket != nil {
		fmt.Fprintf(&b, "  Last wkt %s", projection.FormatLastWicket(s.LastWicket, nil))
	}
	return b.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
