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
	fs := flag.NewFlagSet("lead-sync", flag.ExitOnError)
	campaign := fs.String("campaign", "", "campaign id to sync")
	client := fs.String("client", "", "client id; syncs every campaign of the client")
	targeted := fs.Bool("targeted", false, "update existing leads only")
	execute := cli.ModeFlags(fs)

	cli.Main("lead-sync", fs, os.Args[1:], func(ctx context.Context, stack *bootstrap.Stack) error {
		scope, err := cli.Scope(*campaign, *client)
		if err != nil {
			return err
		}
		opts := cli.Options(*execute)
		opts.Targeted = *targeted
		cli.ModeBanner(os.Stdout, opts)

		if scope.CampaignID != nil {
			res, err := stack.Orchestrator.SyncCampaign(ctx, *scope.CampaignID, opts)
			if err != nil && !errors.Is(err, leadsync.ErrFetchFailed) {
				return err
			}
			printCampaigns([]leadsync.Result{res})
			cli.PrintCounts(os.Stdout, res.Before, res.After)
			cli.PrintErrors(os.Stdout, res.Errors, 20)
			return err
		}

		res, err := stack.Orchestrator.SyncClient(ctx, *scope.ClientID, opts)
		if err != nil {
			return err
		}
		fmt.Printf("client: %s (%s)\n\n", res.ClientName, res.ClientID)
		printCampaigns(res.Campaigns)
		if len(res.Unconfigured) > 0 {
			fmt.Printf("\nskipped %d campaigns without an API key\n", len(res.Unconfigured))
		}
		fmt.Println()
		cli.PrintCounts(os.Stdout, res.Before, res.After)
		cli.PrintErrors(os.Stdout, res.Errors, 20)
		if len(res.Campaigns) > 0 && res.FailedRuns == len(res.Campaigns) {
			return errors.New("every campaign sync failed")
		}
		return nil
	})
}

func printCampaigns(results []leadsync.Result) {
	t := cli.NewTable(os.Stdout)
	fmt.Fprintln(t, "CAMPAIGN\tPAGES\tFETCHED\tIMPORTED\tUPDATED\tFAILED\tNOT FOUND\tSKIPPED\tPOSITIVE\tSTATUS")
	for _, r := range results {
		status := "ok"
		if r.Aborted {
			status = "aborted: " + r.AbortReason
		}
		fmt.Fprintf(t, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.CampaignName, r.Pages, r.Fetched, r.Imported, r.Updated, r.Failed, r.NotFound, r.Skipped, r.PositiveDetected, status)
	}
	_ = t.Flush()
	fmt.Println()
}
