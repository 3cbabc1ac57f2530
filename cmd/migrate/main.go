package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/internal/pkg/config"
	"github.com/luminapay/schoolpay/internal/pkg/logging"
)

const sourceURL = "file://migrations"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	// conf parses os.Args; keep only the program name
	os.Args = os.Args[:1]

	cfg, err := config.Load("migrate")
	if err != nil {
		if errors.Is(err, config.ErrHelpWanted) {
			return
		}
		logrus.Fatal(err)
	}
	log := logging.Setup(cfg.Log.Level, "text")

	log.Infof("connecting to database %s@%s:%s/%s", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	m, err := migrate.New(sourceURL, cfg.MigrateURL())
	if err != nil {
		log.Fatalf("init migrations: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorf("closing migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	if err := run(m, command, args, log); err != nil {
		log.Error(err)
		printUsage()
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, command string, args []string, log *logrus.Logger) error {
	switch command {
	case "up":
		return report(m.Up(), log, "migrations applied")

	case "down":
		return report(m.Steps(-1), log, "last migration rolled back")

	case "goto":
		if len(args) < 1 {
			return errors.New("goto needs a version number")
		}
		version, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return report(m.Migrate(uint(version)), log, fmt.Sprintf("migrated to version %d", version))

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		log.WithField("dirty", dirty).Infof("current version: %d", version)
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func report(err error, log *logrus.Logger, success string) error {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("no change: database is up to date")
		return nil
	case err != nil:
		return err
	}
	log.Info(success)
	return nil
}

func printUsage() {
	fmt.Println("Usage: migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current version")
}
