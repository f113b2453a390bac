package collector

import (
	"testing"

	"github.com/DebritB/NewsRAG/internal/schema"
)

func record(title, summary, source, url string) schema.Record {
	return schema.Record{
		Title:   title,
		Summary: summary,
		Source:  source,
		URL:     url,
	}
}

func TestDedupeKeepsDistinctItems(t *testing.T) {
	t.Parallel()

	c := New(nil)
	survivors, stats := c.Dedupe([]schema.Record{
		record("Rates held steady", "RBA pauses", "ABC News", "https://abc.example/a"),
		record("Cricket final tonight", "Big match", "ABC News", "https://abc.example/b"),
	})
	if len(survivors) != 2 {
		t.Fatalf("expected both items to survive, got %d", len(survivors))
	}
	if stats.TrueDuplicates != 0 || stats.SyndicatedDuplicates != 0 {
		t.Fatalf("unexpected duplicate counts: %+v", stats)
	}
}

func TestDedupeSameSourceIsTrueDuplicate(t *testing.T) {
	t.Parallel()

	c := New(nil)
	survivors, stats := c.Dedupe([]schema.Record{
		record("Rates held steady", "RBA pauses", "ABC News", "https://abc.example/a"),
		record("Rates held steady", "RBA pauses", "ABC News", "https://abc.example/a-repost"),
	})
	if len(survivors) != 1 {
		t.Fatalf("expected one survivor, got %d", len(survivors))
	}
	if stats.TrueDuplicates != 1 {
		t.Fatalf("expected one true duplicate, got %+v", stats)
	}
}

func TestDedupeCrossSourceIsSyndicated(t *testing.T) {
	t.Parallel()

	c := New(nil)
	survivors, stats := c.Dedupe([]schema.Record{
		record("Rates held steady", "RBA pauses", "ABC News", "https://abc.example/a"),
		record("Rates held steady", "RBA pauses", "Nine News", "https://nine.example/a"),
	})
	if len(survivors) != 1 {
		t.Fatalf("expected one survivor, got %d", len(survivors))
	}
	if stats.SyndicatedDuplicates != 1 || stats.PriorityReplacements != 0 {
		t.Fatalf("expected one syndicated duplicate, got %+v", stats)
	}
}

func TestDedupePrioritySourceWinsRegardlessOfOrder(t *testing.T) {
	t.Parallel()

	c := New(nil)

	// Secondary source arrives first; the aggregator copy must still win.
	survivors, stats := c.Dedupe([]schema.Record{
		record("Rates held steady", "RBA pauses", "Some Local Paper", "https://local.example/a"),
		record("Rates held steady", "RBA pauses", "GNews API (AU)", "https://gnews.example/a"),
	})
	if len(survivors) != 1 {
		t.Fatalf("expected one survivor, got %d", len(survivors))
	}
	if survivors[0].Source != "GNews API (AU)" {
		t.Fatalf("expected priority source to survive, got %q", survivors[0].Source)
	}
	if stats.PriorityReplacements != 1 || stats.SyndicatedDuplicates != 0 {
		t.Fatalf("expected the secondary copy counted as a priority replacement, got %+v", stats)
	}
}

func TestDedupeCountsPriorityReplacementInArrivalOrder(t *testing.T) {
	t.Parallel()

	c := New(nil)

	// Aggregator copy arrives first; the counter must not depend on order.
	survivors, stats := c.Dedupe([]schema.Record{
		record("Rates held steady", "RBA pauses", "GNews API (AU)", "https://gnews.example/a"),
		record("Rates held steady", "RBA pauses", "Some Local Paper", "https://local.example/a"),
	})
	if len(survivors) != 1 || survivors[0].Source != "GNews API (AU)" {
		t.Fatalf("expected priority source to survive, got %+v", survivors)
	}
	if stats.PriorityReplacements != 1 || stats.SyndicatedDuplicates != 0 {
		t.Fatalf("expected one priority replacement, got %+v", stats)
	}
}

func TestDedupeEmptyKeysNeverMerge(t *testing.T) {
	t.Parallel()

	c := New(nil)
	survivors, stats := c.Dedupe([]schema.Record{
		record("", "", "ABC News", "https://abc.example/one"),
		record("", "", "Nine News", "https://nine.example/two"),
	})
	if len(survivors) != 2 {
		t.Fatalf("expected blank-key items to stay separate, got %d survivors", len(survivors))
	}
	if stats.EmptyKeys != 2 {
		t.Fatalf("expected both blank keys counted, got %+v", stats)
	}
}

func TestIsPrioritySourceSubstringMatch(t *testing.T) {
	t.Parallel()

	c := New([]string{"my wire"})
	if !c.IsPrioritySource("The Guardian API (UK)") {
		t.Fatalf("expected built-in aggregator match")
	}
	if !c.IsPrioritySource("My Wire Service") {
		t.Fatalf("expected configured source match")
	}
	if c.IsPrioritySource("Random Blog") {
		t.Fatalf("did not expect non-aggregator match")
	}
}
