package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mcdev12/draftslots/go/internal/dbconfig"
	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// seat_migrate copies hot-seat records of the named namespaces from a local
// SQLite seat store into the shared Postgres one.
//
//	go run ./go/internal/tools/seat_migrate -sqlite draftslots.db LOCAL KIOSK2
func main() {
	sqlitePath := flag.String("sqlite", "draftslots.db", "source SQLite seat store")
	overwrite := flag.Bool("overwrite", false, "replace records already present in Postgres")
	flag.Parse()

	namespaces := flag.Args()
	if len(namespaces) == 0 {
		namespaces = []string{"LOCAL"}
	}

	ctx := context.Background()

	// 1) Open the source
	src, err := seatstore.NewSQLite(*sqlitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sqlite: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	dst, err := seatstore.NewPostgres(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer dst.Close()

	// 3) Copy and count
	var total, copied, skipped, errs int
	for _, ns := range namespaces {
		for _, seat := range models.Seats {
			rec, err := src.LoadSeatRecord(ctx, ns, seat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "load %s seat %d: %v\n", ns, seat, err)
				errs++
				continue
			}
			if rec == nil {
				continue
			}
			total++

			if !*overwrite {
				existing, err := dst.LoadSeatRecord(ctx, ns, seat)
				if err != nil {
					fmt.Fprintf(os.Stderr, "check %s seat %d: %v\n", ns, seat, err)
					errs++
					continue
				}
				if existing != nil {
					skipped++
					continue
				}
			}

			if err := dst.SaveSeatRecord(ctx, ns, seat, *rec); err != nil {
				fmt.Fprintf(os.Stderr, "save %s seat %d: %v\n", ns, seat, err)
				errs++
				continue
			}
			copied++
		}
	}

	fmt.Printf(
		"Seat records: total=%d copied=%d skipped=%d errors=%d\n",
		total, copied, skipped, errs,
	)
	if errs > 0 {
		os.Exit(1)
	}
}
