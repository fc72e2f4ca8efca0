package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"canvas-sync/internal/app"
	"canvas-sync/internal/config"
	"canvas-sync/internal/devutil"
	"canvas-sync/internal/logging"
	"canvas-sync/internal/mappers"
)

// Prints the courses Canvas returns for one owner. Handy to check credentials.
func main() {
	configPath := flag.String("config", "config.yaml", "config file (env vars override it)")
	owner := flag.String("owner", "dev", "owner id whose credentials are used")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	creds, err := a.Resolver.Resolve(ctx, *owner)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	fmt.Println("OK: credentials for", creds.String())

	raw, err := a.Client.ListCourses(ctx, creds, a.Fetch)
	if err != nil {
		log.Fatalf("list courses error: %s", logging.SanitizeError(err))
	}
	courses := mappers.Courses(raw)

	fmt.Printf("OK: fetched %d courses (%d visible)\n", len(raw), len(courses))
	for i, c := range courses {
		fmt.Printf("%d) %v\n", i+1, devutil.Pick(c, "id", "name", "course_code", "term.name", "end_at"))
	}
}
