package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/MemberPay/internal/pkg/database"
	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

const usage = `Usage: migrate <command> [arg]

Commands:
  up        apply every pending payment schema migration
  down [N]  roll back N migrations (default 1)
  goto V    migrate to version V
  force V   mark version V as applied and clean after a failed run
  status    print the applied version`

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	m, err := migrate.New(env.GetEnv("MIGRATIONS_PATH", "file://migrations"), databaseURL())
	if err != nil {
		log.Fatalf("[Migrate] init failed: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("[Migrate] close failed: %v, %v", sourceErr, dbErr)
		}
	}()

	if err := run(m, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usage)
		}
		log.Fatalf("[Migrate] %s: %v", os.Args[1], err)
	}
}

var errUsage = errors.New("invalid arguments")

// databaseURL reuses the application DSN so both binaries read the same
// DB_* variables.
func databaseURL() string {
	return "mysql://" + database.DSN() + "&multiStatements=true"
}

// migrator is the subset of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

func run(m migrator, command string, args []string) error {
	switch command {
	case "up":
		return report(m.Up(), "schema is up to date")
	case "down":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("%w: down expects a positive count", errUsage)
			}
			n = v
		}
		return report(m.Steps(-n), fmt.Sprintf("rolled back %d migration(s)", n))
	case "goto":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		return report(m.Migrate(version), fmt.Sprintf("schema at version %d", version))
	case "force":
		version, err := versionArg(args)
		if err != nil {
			return err
		}
		return report(m.Force(int(version)), fmt.Sprintf("forced version %d", version))
	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("[Migrate] no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		if dirty {
			log.Printf("[Migrate] version %d (dirty, run force after fixing)", version)
			return nil
		}
		log.Printf("[Migrate] version %d", version)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func versionArg(args []string) (uint, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: version required", errUsage)
	}
	v, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad version %q", errUsage, args[0])
	}
	return uint(v), nil
}

func report(err error, done string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("[Migrate] no change")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Migrate] %s", done)
	return nil
}
