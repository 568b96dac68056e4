package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/cli"
	"bluereach_backend/internal/leads/integrity"
	"bluereach_backend/internal/leads/repository"
)

func main() {
	fs := flag.NewFlagSet("lead-integrity-audit", flag.ExitOnError)
	campaign := fs.String("campaign", "", "limit the audit to one campaign")
	client := fs.String("client", "", "limit the audit to one client")
	execute := cli.ModeFlags(fs)

	cli.Main("lead-integrity-audit", fs, os.Args[1:], func(ctx context.Context, stack *bootstrap.Stack) error {
		campaignID, err := cli.OptionalID("campaign", *campaign)
		if err != nil {
			return err
		}
		clientID, err := cli.OptionalID("client", *client)
		if err != nil {
			return err
		}
		opts := cli.Options(*execute)
		cli.ModeBanner(os.Stdout, opts)

		auditor := integrity.NewAuditor(integrity.NewStore(stack.Leads), stack.Log)
		rep, err := auditor.Run(ctx, repository.Scope{CampaignID: campaignID, ClientID: clientID}, opts.Live())
		if err != nil {
			return err
		}

		fmt.Printf("duplicate groups: %d (%d redundant rows)\n", len(rep.Duplicates), rep.DuplicateRows())
		if len(rep.Duplicates) > 0 {
			t := cli.NewTable(os.Stdout)
			fmt.Fprintln(t, "EMAIL\tROWS\tKEEP")
			for _, g := range rep.Duplicates {
				fmt.Fprintf(t, "%s\t%d\t%s\n", g.Email, len(g.IDs), g.IDs[0])
			}
			_ = t.Flush()
		}

		fmt.Printf("\nprovider id collisions: %d\n", len(rep.Collisions))
		if len(rep.Collisions) > 0 {
			t := cli.NewTable(os.Stdout)
			fmt.Fprintln(t, "CLIENT\tPROVIDER LEAD ID\tLEADS")
			for _, c := range rep.Collisions {
				fmt.Fprintf(t, "%s\t%s\t%d\n", c.ClientID, c.ProviderLeadID, len(c.LeadIDs))
			}
			_ = t.Flush()
		}

		fmt.Printf("\npositive on a terminal status: %d\n", rep.Anomalies.PositiveTerminal)
		fmt.Printf("replies without has_replied:  %d\n", rep.Anomalies.RepliesNotReplied)
		fmt.Printf("orphaned by a deleted campaign: %d\n", rep.Anomalies.OrphanedByCampaign)

		if rep.Live {
			fmt.Printf("\nmerged %d rows, %d groups failed, fixed %d replied flags\n", rep.Merged, rep.MergeFailed, rep.FlagsFixed)
			cli.PrintErrors(os.Stdout, rep.MergeErrors, 20)
			if rep.MergeFailed > 0 {
				return fmt.Errorf("%d duplicate groups could not be merged", rep.MergeFailed)
			}
		}
		return nil
	})
}
