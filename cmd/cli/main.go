package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/wadjakorntonsri/linkshort/pkg/adapters/repository"
	"github.com/wadjakorntonsri/linkshort/pkg/config"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/core/services"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const usage = "expected one of: export, import -file <links.json>, prune [-days N], create-admin -email <e> -password <p>"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	pruneCmd := flag.NewFlagSet("prune", flag.ExitOnError)
	pruneDays := pruneCmd.Int("days", 0, "keep click events from the last N days (default ANALYTICS_RETENTION_DAYS)")
	adminCmd := flag.NewFlagSet("create-admin", flag.ExitOnError)
	adminEmail := adminCmd.String("email", "", "admin email")
	adminPassword := adminCmd.String("password", "", "admin password (8+ characters)")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.Load()
	// Logs go to stderr so export output stays clean JSON.
	logger := logging.NewLoggerTo(os.Stderr, logging.LogLevel(cfg.LogLevel))
	ctx := context.Background()

	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(ctx, "failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		err = doExport(ctx, store)
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = doImport(ctx, store, cfg, logger, *importFile)
	case "prune":
		pruneCmd.Parse(os.Args[2:])
		days := *pruneDays
		if days <= 0 {
			days = cfg.AnalyticsRetentionDays
		}
		_, err = services.NewAdminService(store, cfg.BaseURL, logger).PruneClickEvents(ctx, days)
	case "create-admin":
		adminCmd.Parse(os.Args[2:])
		auth := services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpiresIn, logger)
		var user *domain.User
		if user, err = auth.CreateAdmin(ctx, *adminEmail, *adminPassword); err == nil {
			logger.Info(ctx, "admin created", "id", user.ID)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		logger.Error(ctx, os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func doExport(ctx context.Context, store ports.Store) error {
	links, err := store.Dump(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// doImport copies links from an export, keeping their codes and counters.
// Owners are not carried over because user ids differ between databases.
func doImport(ctx context.Context, store ports.Store, cfg *config.Config, logger *logging.Logger, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var links []domain.Link
	if err := json.NewDecoder(file).Decode(&links); err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}

	imported := 0
	for _, l := range links {
		if err := services.ValidateURL(l.OriginalURL, cfg.BlockedDomains); err != nil {
			logger.Warn(ctx, "skipping invalid url", "code", l.ShortCode, "error", err)
			continue
		}
		exists, err := store.ExistsByCode(ctx, l.ShortCode)
		if err != nil {
			return err
		}
		if exists {
			logger.Info(ctx, "skipping existing code", "code", l.ShortCode)
			continue
		}

		l.ID = 0
		l.OwnerID = nil
		l.ShortURL = ""
		if err := store.InsertLink(ctx, &l); err != nil {
			logger.Warn(ctx, "import failed", "code", l.ShortCode, "error", err)
			continue
		}
		imported++
	}
	logger.Info(ctx, "import finished", "imported", imported, "total", len(links))
	return nil
}
