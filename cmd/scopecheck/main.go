// Command scopecheck diffs the declared table registry against a live
// database schema. It runs as a CI gate and at deploy time; any discrepancy
// exits non-zero and blocks the rollout.
package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clearline-hq/clearline/internal/registry"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	tablesPath := os.Getenv("TABLES_PATH")
	if tablesPath == "" {
		tablesPath = "config/tables.yaml"
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL required")
	}
	schema := os.Getenv("DB_SCHEMA")

	reg, err := registry.Load(tablesPath)
	if err != nil {
		log.WithError(err).WithField("path", tablesPath).Fatal("load registry")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer pool.Close()

	discrepancies, err := registry.Validate(ctx, reg, registry.NewPGSchemaSource(pool, schema))
	if err != nil {
		log.WithError(err).Fatal("validate")
	}
	if len(discrepancies) > 0 {
		for _, d := range discrepancies {
			log.WithFields(logrus.Fields{
				"table":  d.Table,
				"kind":   string(d.Kind),
				"detail": d.Detail,
			}).Error("registry discrepancy")
		}
		log.WithField("count", len(discrepancies)).Fatal("registry does not match schema")
	}

	log.WithField("tables", len(reg.Tables())).Info("registry matches schema")
}
