// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"

	openclaw "github.com/openclaw/openclaw-storage"
	"github.com/openclaw/openclaw-storage/storage"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "openclaw-storage",
		Usage: "Inspect and manage the OpenClaw storage layer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the resolved backend for every namespace",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the storage configuration file",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit machine-readable output",
					},
					&cli.BoolFlag{
						Name:  "health",
						Usage: "Probe every resolved backend",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Move namespace data between backends",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the storage configuration file",
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Destination backend (file, agentcore, secrets-manager)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "namespace",
						Aliases: []string{"n"},
						Usage:   "Restrict the migration to one namespace",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Enumerate what would move without writing",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm a destructive migration",
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	// A .env next to the binary may carry AWS_REGION and credentials.
	_ = godotenv.Load()

	levelStr := strings.ToLower(c.String("log-level"))
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func loadConfig(c *cli.Context) (openclaw.Config, error) {
	path := c.String("config")
	if path == "" {
		return openclaw.DefaultConfig(), nil
	}
	return openclaw.LoadConfig(path)
}

type statusReport struct {
	Mode       openclaw.Mode                                  `json:"mode"`
	Namespaces map[storage.Namespace]openclaw.NamespaceStatus `json:"namespaces"`
	Health     map[storage.Namespace]storage.HealthStatus     `json:"health,omitempty"`
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	service, err := openclaw.NewService(cfg, nil)
	if err != nil {
		return err
	}
	defer service.Close()

	report := statusReport{
		Mode:       cfg.Type,
		Namespaces: service.ConfigSummary(),
	}
	if c.Bool("health") {
		ctx := context.Background()
		if err := service.Initialize(ctx); err != nil {
			return err
		}
		report.Health = service.HealthCheck(ctx)
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	fmt.Fprintf(c.App.Writer, "mode: %s\n", report.Mode)
	for _, ns := range storage.Namespaces() {
		status := report.Namespaces[ns]
		line := fmt.Sprintf("%-12s %-16s %s", ns, status.Backend, status.Classification)
		if report.Health != nil {
			health := report.Health[ns]
			if health.OK {
				line += fmt.Sprintf("  ok (%s)", health.Latency.Round(10*time.Microsecond))
			} else {
				line += fmt.Sprintf("  UNHEALTHY: %s", health.Err)
			}
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	switch c.String("to") {
	case storage.TypeFile, storage.TypeAgentCore, storage.TypeSecretsManager:
	default:
		return fmt.Errorf("unsupported migration target %q: must be one of file, agentcore, secrets-manager", c.String("to"))
	}

	namespaces := storage.Namespaces()
	if nsFlag := c.String("namespace"); nsFlag != "" {
		ns, err := storage.ParseNamespace(nsFlag)
		if err != nil {
			return err
		}
		namespaces = []storage.Namespace{ns}
	}

	if !c.Bool("dry-run") {
		if !c.Bool("yes") {
			return fmt.Errorf("migration rewrites data in place; re-run with --yes to confirm, or use --dry-run")
		}
		return fmt.Errorf("data copy is not implemented yet; only --dry-run enumeration is available")
	}

	service, err := openclaw.NewService(cfg, nil)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()
	if err := service.Initialize(ctx); err != nil {
		return err
	}

	counts, errs := enumerateKeys(ctx, service, namespaces)

	fmt.Fprintf(c.App.Writer, "dry run: migrating to %s\n", c.String("to"))
	for _, ns := range namespaces {
		if err, ok := errs[ns]; ok {
			fmt.Fprintf(c.App.Writer, "%-12s error: %v\n", ns, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%-12s %d keys\n", ns, counts[ns])
	}
	return nil
}

// enumerateKeys counts the keys behind each namespace concurrently.
func enumerateKeys(ctx context.Context, service *openclaw.Service, namespaces []storage.Namespace) (map[storage.Namespace]int, map[storage.Namespace]error) {
	type result struct {
		ns    storage.Namespace
		count int
		err   error
	}
	results := make([]result, len(namespaces))

	count := func(i int, ns storage.Namespace) {
		backend, err := service.GetBackend(ctx, ns)
		if err != nil {
			results[i] = result{ns: ns, err: err}
			return
		}
		keys, err := backend.List(ctx, ns, "")
		if err != nil {
			results[i] = result{ns: ns, err: err}
			return
		}
		results[i] = result{ns: ns, count: len(keys)}
	}

	pool, err := ants.NewPool(len(namespaces))
	if err != nil {
		for i, ns := range namespaces {
			count(i, ns)
		}
	} else {
		defer pool.Release()
		var wg sync.WaitGroup
		for i, ns := range namespaces {
			wg.Add(1)
			if submitErr := pool.Submit(func() {
				defer wg.Done()
				count(i, ns)
			}); submitErr != nil {
				results[i] = result{ns: ns, err: submitErr}
				wg.Done()
			}
		}
		wg.Wait()
	}

	counts := make(map[storage.Namespace]int, len(namespaces))
	errs := make(map[storage.Namespace]error)
	for _, r := range results {
		if r.err != nil {
			errs[r.ns] = r.err
			continue
		}
		counts[r.ns] = r.count
	}
	return counts, errs
}
