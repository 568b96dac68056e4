package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/cli"
	"bluereach_backend/internal/leadsync"
)

func main() {
	fs := flag.NewFlagSet("positive-resync", flag.ExitOnError)
	campaign := fs.String("campaign", "", "campaign id to reconcile")
	client := fs.String("client", "", "client id; reconciles every campaign of the client")
	execute := cli.ModeFlags(fs)

	cli.Main("positive-resync", fs, os.Args[1:], func(ctx context.Context, stack *bootstrap.Stack) error {
		scope, err := cli.Scope(*campaign, *client)
		if err != nil {
			return err
		}
		opts := cli.Options(*execute)
		cli.ModeBanner(os.Stdout, opts)

		res, err := stack.Orchestrator.ResyncPositive(ctx, scope, opts)
		if err != nil && !errors.Is(err, leadsync.ErrFetchFailed) {
			return err
		}

		t := cli.NewTable(os.Stdout)
		fmt.Fprintln(t, "CAMPAIGN\tFETCHED\tUNRESOLVED\tRESET\tREMARKED")
		for _, c := range res.Campaigns {
			fmt.Fprintf(t, "%s\t%d\t%d\t%d\t%d\n", c.CampaignName, c.Fetched, c.Unresolved, c.Reset, c.Remarked)
		}
		_ = t.Flush()
		fmt.Printf("\nreset %d, remarked %d, misconfigured campaigns %d\n\n", res.Reset, res.Remarked, res.Misconfigured)
		cli.PrintCounts(os.Stdout, res.Before, res.After)
		cli.PrintErrors(os.Stdout, res.Errors, 20)
		return err
	})
}
