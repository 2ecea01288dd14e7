// Command auditverify replays one tenant's audit chain and reports the
// first tampered entry, if any.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clearline-hq/clearline/internal/auditchain"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	orgID := flag.String("org", "", "org id whose chain to verify")
	fromEntry := flag.String("from", "", "entry id to start the replay at (default: genesis)")
	flag.Parse()

	if *orgID == "" {
		log.Fatal("-org required")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer pool.Close()

	res, err := auditchain.NewPGLedger(pool).VerifyChain(ctx, *orgID, *fromEntry)
	if err != nil {
		log.WithError(err).Fatal("verify")
	}
	if !res.Clean {
		log.WithFields(logrus.Fields{
			"org_id":   *orgID,
			"index":    res.FirstBadIndex,
			"entry_id": res.FirstBadEntryID,
		}).Fatal("chain tampered")
	}
	log.WithFields(logrus.Fields{
		"org_id":  *orgID,
		"entries": res.Checked,
	}).Info("chain clean")
}
