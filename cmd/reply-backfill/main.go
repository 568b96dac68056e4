package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/cli"
)

func main() {
	fs := flag.NewFlagSet("reply-backfill", flag.ExitOnError)
	campaign := fs.String("campaign", "", "campaign id whose replied leads miss responded_at")
	execute := cli.ModeFlags(fs)

	cli.Main("reply-backfill", fs, os.Args[1:], func(ctx context.Context, stack *bootstrap.Stack) error {
		campaignID, err := cli.OptionalID("campaign", *campaign)
		if err != nil {
			return err
		}
		if campaignID == nil {
			return fmt.Errorf("%w: --campaign is required", cli.ErrUsage)
		}
		opts := cli.Options(*execute)
		cli.ModeBanner(os.Stdout, opts)

		res, err := stack.Orchestrator.BackfillReplyTimestamps(ctx, *campaignID, opts)
		if err != nil {
			return err
		}

		t := cli.NewTable(os.Stdout)
		fmt.Fprintln(t, "CANDIDATES\tFILLED\tNO REPLY\tFAILED\tCHUNKS")
		fmt.Fprintf(t, "%d\t%d\t%d\t%d\t%d\n", res.Candidates, res.Filled, res.NoReply, res.Failed, res.Chunks)
		_ = t.Flush()
		cli.PrintErrors(os.Stdout, res.Errors, 20)
		return nil
	})
}
