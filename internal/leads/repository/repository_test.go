package repository

import (
	"strings"
	"testing"

	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	tests := map[string]string{
		"Ana":        "%ana%",
		"100%":       `%100\%%`,
		"first_name": `%first\_name%`,
		`back\slash`: `%back\\slash%`,
	}
	for in, want := range tests {
		if got := containsPattern(in); got != want {
			t.Fatalf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListWhereBindsFilters(t *testing.T) {
	status := reconcile.StatusReplied
	clause, args := listWhere(ListParams{
		CampaignID:   uuid.New(),
		Status:       &status,
		PositiveOnly: true,
		Search:       "  50%_off ",
	})

	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if args[2] != `%50\%\_off%` {
		t.Fatalf("expected escaped search pattern, got %v", args[2])
	}
	for _, fragment := range []string{"status = $2", "is_positive_reply", `lower(email) LIKE $3 ESCAPE '\'`} {
		if !strings.Contains(clause, fragment) {
			t.Fatalf("expected %q in %q", fragment, clause)
		}
	}

	clause, args = listWhere(ListParams{CampaignID: uuid.New(), Search: "   "})
	if clause != "campaign_id = $1" || len(args) != 1 {
		t.Fatalf("expected blank search to add no filter, got %q %v", clause, args)
	}
}
