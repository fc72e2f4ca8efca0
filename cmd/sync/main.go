package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/app"
	"canvas-sync/internal/config"
	"canvas-sync/internal/export"
	"canvas-sync/internal/logging"
	"canvas-sync/internal/sftpclient"
	csync "canvas-sync/internal/sync"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file (env vars override it)")
		owner      = flag.String("owner", "", "owner id to sync (required)")
		dryRun     = flag.Bool("dry-run", false, "compute the report without writing")
		stale      = flag.Bool("stale", true, "flag records Canvas no longer returns")
		outDir     = flag.String("out", "", "write the report CSV into this dir")
		uploadSFTP = flag.Bool("sftp", false, "upload the report CSV via SFTP")
		timeout    = flag.Duration("timeout", 30*time.Minute, "overall timeout")
	)
	flag.Parse()

	if *owner == "" {
		log.Fatal("missing -owner")
	}

	// timeout general
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("cannot build app", zap.Error(err))
	}
	defer a.Close()

	rep, runErr := a.Syncer().Run(ctx, *owner, csync.RunOptions{DryRun: *dryRun, DetectStale: *stale})
	var perr *csync.PersistenceError
	if runErr != nil && !errors.As(runErr, &perr) {
		logger.Fatal("sync failed", zap.String("run_id", rep.RunID), zap.String("error", logging.SanitizeError(runErr)))
	}
	fmt.Println(summary(rep))

	if *outDir != "" || *uploadSFTP {
		dir := *outDir
		if dir == "" {
			dir = os.TempDir()
		}
		path, err := writeReport(dir, rep)
		if err != nil {
			logger.Fatal("cannot write report", zap.Error(err))
		}
		logger.Info("report written", zap.String("path", path))

		if *uploadSFTP {
			upCfg, ok := a.SFTP()
			if !ok {
				logger.Fatal("sftp upload requested but SFTP_HOST / SFTP_USER are not set")
			}
			if err := sftpclient.UploadFile(ctx, upCfg, path, filepath.Base(path)); err != nil {
				logger.Fatal("sftp upload failed", zap.Error(err))
			}
		}
	}

	if runErr != nil {
		logger.Fatal("sync not persisted", zap.String("error", logging.SanitizeError(runErr)))
	}
}

func summary(rep csync.RunReport) string {
	return fmt.Sprintf("run %s owner=%s dry_run=%v courses(+%d ~%d =%d !%d stale %d) assignments(+%d ~%d =%d !%d stale %d) errors=%d",
		rep.RunID, rep.Owner, rep.DryRun,
		rep.Courses.Inserted, rep.Courses.Updated, rep.Courses.Unchanged, rep.Courses.Failed, rep.Courses.Stale,
		rep.Assignments.Inserted, rep.Assignments.Updated, rep.Assignments.Unchanged, rep.Assignments.Failed, rep.Assignments.Stale,
		len(rep.Errors))
}

// writeReport writes the run report CSV into dir and returns its path.
func writeReport(dir string, rep csync.RunReport) (string, error) {
	// asegura dir de salida
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, export.ReportFileName(rep))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := export.WriteReportCSV(f, rep); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
