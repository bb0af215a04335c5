package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcdev12/draftslots/go/internal/roster"
	"github.com/mcdev12/draftslots/go/internal/sports/base"
	"github.com/mcdev12/draftslots/go/internal/sports/nfl"
)

var audited = []string{"QB", "RB", "WR", "TE", "K"}

// roster_audit fetches every catalog team's roster from the configured
// source and reports teams that cannot fill some slot, so a catalog or
// source change can be checked before it reaches players.
func main() {
	source := flag.String("source", "espn", "roster source: espn or sportradar")
	catalog := flag.String("catalog", "", "team catalog file (default: embedded)")
	delay := flag.Duration("delay", 250*time.Millisecond, "pause between roster requests")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	// 1) Initialize the plugin from flags
	err := base.InitializePlugin(nfl.Key, map[string]interface{}{
		"roster_source": *source,
		"catalog_path":  *catalog,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init plugin: %v\n", err)
		os.Exit(1)
	}
	plg, err := base.GetPlugin(nfl.Key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get plugin: %v\n", err)
		os.Exit(1)
	}

	// 2) Fetch and count eligible players per position
	ctx := context.Background()
	var total, short, errs int
	for i, team := range plg.Teams().All() {
		if i > 0 {
			time.Sleep(*delay)
		}
		total++

		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		players, err := plg.Rosters().FetchTeamRoster(fetchCtx, team.ID)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-4s fetch error: %v\n", team.Abbreviation, err)
			errs++
			continue
		}

		counts := make(map[string]int)
		for _, p := range players {
			if len(roster.EligibleSlotsFor(p.Position)) > 0 {
				counts[p.Position]++
			}
		}

		var missing []string
		for _, pos := range audited {
			if counts[pos] == 0 {
				missing = append(missing, pos)
			}
		}
		if len(missing) > 0 {
			short++
			fmt.Printf("%-4s %-28s MISSING %v\n", team.Abbreviation, team.Name, missing)
			continue
		}
		fmt.Printf("%-4s %-28s QB=%d RB=%d WR=%d TE=%d K=%d\n",
			team.Abbreviation, team.Name,
			counts["QB"], counts["RB"], counts["WR"], counts["TE"], counts["K"])
	}

	fmt.Printf("Roster audit: teams=%d short=%d errors=%d\n", total, short, errs)
	if short > 0 || errs > 0 {
		os.Exit(1)
	}
}
