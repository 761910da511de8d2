package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/atlas/internal/adapters/driving/api"
	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/services"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Trigger and inspect document snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create [reference-id]",
	Short: "Ingest a document and record a new snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotCreate,
}

var snapshotGetCmd = &cobra.Command{
	Use:   "get [snapshot-id]",
	Short: "Show a snapshot with its status and diffs",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotGet,
}

var (
	snapshotToken string
	snapshotWait  time.Duration
)

func init() {
	snapshotCreateCmd.Flags().StringVar(&snapshotToken, "token", "", "Source integration token (overrides configuration)")
	snapshotCreateCmd.Flags().DurationVar(&snapshotWait, "wait", 2*time.Minute, "How long to wait for the snapshot to finish (0 to return immediately)")

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotGetCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	id, err := app.service.CreateSnapshot(ctx, args[0], snapshotToken)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	cmd.Printf("Snapshot %s triggered.\n", id)

	if snapshotWait <= 0 {
		return nil
	}

	// One-shot mode: run a local worker pool until the snapshot settles.
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := services.NewWorkerPool(app.queue, app.service, app.cfg.Workers, 250*time.Millisecond)
	pool.Start(poolCtx)
	defer pool.Stop()

	snap, err := waitForSnapshot(ctx, app, id, snapshotWait)
	if err != nil {
		return err
	}
	return printSnapshot(cmd, snap)
}

func runSnapshotGet(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	snap, err := app.service.GetSnapshot(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	return printSnapshot(cmd, snap)
}

// waitForSnapshot polls until the snapshot reaches a terminal state or
// the timeout elapses.
func waitForSnapshot(ctx context.Context, app *app, id string, timeout time.Duration) (*domain.Snapshot, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap, err := app.service.GetSnapshot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("polling snapshot: %w", err)
		}
		if snap.Status == domain.SnapshotDone || snap.Status == domain.SnapshotError {
			return snap, nil
		}
		if time.Now().After(deadline) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printSnapshot(cmd *cobra.Command, snap *domain.Snapshot) error {
	out, err := json.MarshalIndent(api.ToSnapshotResponse(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
