package journalcmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/scribe/internal/backend"
	pebbleback "github.com/rzbill/scribe/internal/backend/pebble"
	cfgpkg "github.com/rzbill/scribe/internal/config"
	"github.com/rzbill/scribe/internal/journal"
	"github.com/rzbill/scribe/internal/runtime"
)

// ConfigFunc provides the resolved configuration (file, env, flags).
type ConfigFunc func() (cfgpkg.Config, error)

// NewJournalCommand constructs the `journal` command group and subcommands.
func NewJournalCommand(loadConfig ConfigFunc) *cobra.Command {
	journalCmd := &cobra.Command{Use: "journal", Short: "Journal operations on the local store"}

	journalCmd.AddCommand(
		newWriteCommand(loadConfig),
		newReadCommand(loadConfig),
		newTrimCommand(loadConfig),
		newConfirmCommand(loadConfig),
		newStatsCommand(loadConfig),
	)

	return journalCmd
}

func openRuntime(loadConfig ConfigFunc) (*runtime.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return runtime.Open(runtime.Options{Config: cfg})
}

// collectDest gathers journal results for the CLI's synchronous use.
type collectDest struct {
	ch chan journal.Result
}

func newCollectDest() *collectDest {
	return &collectDest{ch: make(chan journal.Result, 256)}
}

func (d *collectDest) Deliver(res journal.Result, _ journal.Ref) { d.ch <- res }

func (d *collectDest) next() (journal.Result, error) {
	select {
	case res := <-d.ch:
		return res, nil
	case <-time.After(30 * time.Second):
		return nil, errors.New("timed out waiting for journal result")
	}
}

// newWriteCommand constructs the `journal write` subcommand. Each argument
// becomes one record; multiple arguments commit as one atomic batch.
func newWriteCommand(loadConfig ConfigFunc) *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write [payload]...",
		Short: "Write payloads to a stream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streamID, _ := cmd.Flags().GetString("stream")
			sender, _ := cmd.Flags().GetString("sender")

			rt, err := openRuntime(loadConfig)
			if err != nil {
				return err
			}
			defer rt.Close()
			j, err := rt.OpenJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			recs := make([]journal.Record, len(args))
			for i, a := range args {
				recs[i] = journal.Record{StreamID: streamID, Sender: journal.RefID(sender), Payload: []byte(a)}
			}
			dest := newCollectDest()
			if len(recs) == 1 {
				err = j.Write(recs[0], dest, journal.NoSender)
			} else {
				err = j.WriteBatch(recs, dest, journal.NoSender)
			}
			if err != nil {
				return err
			}
			for range recs {
				res, err := dest.next()
				if err != nil {
					return err
				}
				switch r := res.(type) {
				case journal.WriteOK:
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s seq=%d\n", r.Record.StreamID, r.Record.Seq)
				case journal.WriteFailed:
					return fmt.Errorf("write seq=%d: %w", r.Record.Seq, r.Err)
				default:
					return fmt.Errorf("unexpected result %T", res)
				}
			}
			return nil
		},
	}
	writeCmd.Flags().String("stream", "default", "Stream ID")
	writeCmd.Flags().String("sender", "", "Sender ID recorded with each payload")
	return writeCmd
}

type readRow struct {
	Stream  string `json:"stream"`
	Seq     uint64 `json:"seq"`
	Sender  string `json:"sender,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Payload string `json:"payload"`
}

// newReadCommand constructs the `journal read` subcommand.
func newReadCommand(loadConfig ConfigFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read a stream's records as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streamID, _ := cmd.Flags().GetString("stream")
			from, _ := cmd.Flags().GetUint64("from")
			to, _ := cmd.Flags().GetUint64("to")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

			rt, err := openRuntime(loadConfig)
			if err != nil {
				return err
			}
			defer rt.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			if scanner, ok := rt.Scanner(); ok {
				recs, err := scanner.Scan(cmd.Context(), streamID, from, to, pebbleback.ScanOptions{
					Filter:         filter,
					Limit:          limit,
					IncludeDeleted: includeDeleted,
				})
				if err != nil {
					return err
				}
				for _, rec := range recs {
					if err := enc.Encode(readRow{
						Stream:  rec.StreamID,
						Seq:     rec.Seq,
						Sender:  rec.Sender,
						Deleted: rec.Deleted,
						Payload: string(rec.Payload),
					}); err != nil {
						return err
					}
				}
				return nil
			}
			if filter != "" || includeDeleted {
				return errors.New("--filter and --include-deleted need the pebble backend")
			}
			n := 0
			var encErr error
			_, err = rt.Replayer().ReplayStream(cmd.Context(), streamID, from, to, func(rec backend.Record) {
				if encErr != nil || (limit > 0 && n >= limit) {
					return
				}
				n++
				encErr = enc.Encode(readRow{
					Stream:  rec.StreamID,
					Seq:     rec.Seq,
					Sender:  rec.Sender,
					Payload: string(rec.Payload),
				})
			})
			if err != nil {
				return err
			}
			return encErr
		},
	}
	readCmd.Flags().String("stream", "default", "Stream ID")
	readCmd.Flags().Uint64("from", 1, "First sequence number (inclusive)")
	readCmd.Flags().Uint64("to", ^uint64(0), "Last sequence number (inclusive)")
	readCmd.Flags().String("filter", "", "CEL filter, e.g. 'sequence >= 5 && text.contains(\"err\")'")
	readCmd.Flags().Int("limit", 0, "Stop after N records (0 = no limit)")
	readCmd.Flags().Bool("include-deleted", false, "Also show records marked deleted")
	return readCmd
}

// newTrimCommand constructs the `journal trim` subcommand.
func newTrimCommand(loadConfig ConfigFunc) *cobra.Command {
	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "Delete a range of a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streamID, _ := cmd.Flags().GetString("stream")
			from, _ := cmd.Flags().GetUint64("from")
			to, _ := cmd.Flags().GetUint64("to")
			permanent, _ := cmd.Flags().GetBool("permanent")

			rt, err := openRuntime(loadConfig)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Store().DeleteRange(cmd.Context(), streamID, from, to, permanent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trimmed %s [%d, %d] permanent=%v\n", streamID, from, to, permanent)
			return nil
		},
	}
	trimCmd.Flags().String("stream", "default", "Stream ID")
	trimCmd.Flags().Uint64("from", 1, "First sequence number (inclusive)")
	trimCmd.Flags().Uint64("to", 0, "Last sequence number (inclusive)")
	trimCmd.Flags().Bool("permanent", false, "Remove records instead of marking them deleted")
	_ = trimCmd.MarkFlagRequired("to")
	return trimCmd
}

// newConfirmCommand constructs the `journal confirm` subcommand.
func newConfirmCommand(loadConfig ConfigFunc) *cobra.Command {
	confirmCmd := &cobra.Command{
		Use:   "confirm",
		Short: "Mark a record delivered to a channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streamID, _ := cmd.Flags().GetString("stream")
			seq, _ := cmd.Flags().GetUint64("seq")
			channel, _ := cmd.Flags().GetString("channel")

			rt, err := openRuntime(loadConfig)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Store().Confirm(cmd.Context(), streamID, seq, channel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed %s seq=%d channel=%s\n", streamID, seq, channel)
			return nil
		},
	}
	confirmCmd.Flags().String("stream", "default", "Stream ID")
	confirmCmd.Flags().Uint64("seq", 0, "Sequence number")
	confirmCmd.Flags().String("channel", "", "Channel ID")
	_ = confirmCmd.MarkFlagRequired("seq")
	_ = confirmCmd.MarkFlagRequired("channel")
	return confirmCmd
}

// newStatsCommand constructs the `journal stats` subcommand.
func newStatsCommand(loadConfig ConfigFunc) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored-record stats for a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streamID, _ := cmd.Flags().GetString("stream")

			rt, err := openRuntime(loadConfig)
			if err != nil {
				return err
			}
			defer rt.Close()
			scanner, ok := rt.Scanner()
			if !ok {
				return errors.New("stats needs the pebble backend")
			}
			st, err := scanner.Stats(cmd.Context(), streamID)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
		},
	}
	statsCmd.Flags().String("stream", "default", "Stream ID")
	return statsCmd
}
