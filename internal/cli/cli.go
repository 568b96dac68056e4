// Package cli holds the flag conventions and output helpers shared by the
// maintenance commands. Every command is a dry run unless --execute, --live
// or -x is given.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/events"
	"bluereach_backend/internal/leadsync"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrUsage marks invalid command-line input.
var ErrUsage = errors.New("usage")

// ModeFlags registers the write switches on fs. All three names set the same
// value.
func ModeFlags(fs *flag.FlagSet) *bool {
	execute := new(bool)
	fs.BoolVar(execute, "execute", false, "write changes (default is a dry run)")
	fs.BoolVar(execute, "live", false, "alias for --execute")
	fs.BoolVar(execute, "x", false, "alias for --execute")
	return execute
}

// Options maps the write switch to run options.
func Options(execute bool) leadsync.Options {
	if execute {
		return leadsync.Options{Mode: leadsync.ModeLive}
	}
	return leadsync.Options{Mode: leadsync.ModeDryRun}
}

// OptionalID parses an optional uuid flag value.
func OptionalID(name, value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("%w: --%s must be a uuid", ErrUsage, name)
	}
	return &id, nil
}

// Scope builds a campaign or client scope; exactly one must be set.
func Scope(campaign, client string) (leadsync.ResyncScope, error) {
	campaignID, err := OptionalID("campaign", campaign)
	if err != nil {
		return leadsync.ResyncScope{}, err
	}
	clientID, err := OptionalID("client", client)
	if err != nil {
		return leadsync.ResyncScope{}, err
	}
	if (campaignID == nil) == (clientID == nil) {
		return leadsync.ResyncScope{}, fmt.Errorf("%w: pass exactly one of --campaign or --client", ErrUsage)
	}
	return leadsync.ResyncScope{CampaignID: campaignID, ClientID: clientID}, nil
}

// Main runs a command against the wired stack and exits 1 when it fails.
// In-flight event handlers finish before the process exits.
func Main(name string, fs *flag.FlagSet, args []string, run func(ctx context.Context, stack *bootstrap.Stack) error) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadBase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load config: %v\n", name, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Archive: true})
	if err != nil {
		log.Error("failed to initialize", "command", name, "error", err)
		os.Exit(1)
	}

	err = run(ctx, stack)
	stack.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		if errors.Is(err, ErrUsage) {
			fs.Usage()
		}
		os.Exit(1)
	}
}

// NewTable returns a tab-aligned writer. Call Flush when done.
func NewTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// PrintCounts writes a before/after table of lead aggregates.
func PrintCounts(w io.Writer, before, after events.Counts) {
	t := NewTable(w)
	fmt.Fprintln(t, "\tBEFORE\tAFTER\tDELTA")
	row := func(label string, b, a int) {
		fmt.Fprintf(t, "%s\t%d\t%d\t%+d\n", label, b, a, a-b)
	}
	row("total", before.Total, after.Total)
	row("replied", before.Replied, after.Replied)
	row("positive", before.Positive, after.Positive)
	_ = t.Flush()
}

// PrintErrors lists run errors, at most limit of them.
func PrintErrors(w io.Writer, errs []string, limit int) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "\nerrors (%d):\n", len(errs))
	for i, e := range errs {
		if limit > 0 && i >= limit {
			fmt.Fprintf(w, "  ... %d more\n", len(errs)-limit)
			return
		}
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

// ModeBanner names the run mode at the top of the output.
func ModeBanner(w io.Writer, opts leadsync.Options) {
	if opts.Live() {
		fmt.Fprintln(w, "mode: LIVE (writes enabled)")
		return
	}
	fmt.Fprintln(w, "mode: dry run (pass --execute to write)")
}
