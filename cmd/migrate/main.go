package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kdimtricp/elbowtrack/internal/config"
	"github.com/kdimtricp/elbowtrack/internal/database"
)

func main() {
	defaults := config.Default().Database

	var (
		dbType         = flag.String("db", defaults.Type, "Database type (postgres or sqlite)")
		path           = flag.String("path", defaults.Path, "SQLite database path")
		host           = flag.String("host", defaults.Host, "Database host")
		port           = flag.Int("port", defaults.Port, "Database port")
		user           = flag.String("user", defaults.User, "Database user")
		password       = flag.String("password", defaults.Password, "Database password")
		dbName         = flag.String("name", defaults.Name, "Database name")
		migrationsPath = flag.String("migrations", defaults.MigrationsPath, "Path to migrations directory")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	cfg := database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *path,
	}

	// environment wins over flags
	for env, dst := range map[string]*string{
		"DB_TYPE":     &cfg.Type,
		"DB_PATH":     &cfg.SQLitePath,
		"DB_HOST":     &cfg.Host,
		"DB_USER":     &cfg.User,
		"DB_PASSWORD": &cfg.Password,
		"DB_NAME":     &cfg.Name,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	db, err := database.NewDB(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if !*status {
		slog.Info("Running migrations", "path", *migrationsPath, "database", db.Type())
		if err := db.RunMigrations(*migrationsPath); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	migrator := database.NewMigrator(db.Conn(), db.Type())
	if err := migrator.Initialize(); err != nil {
		slog.Error("Failed to initialize migrator", "error", err)
		os.Exit(1)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		slog.Error("Failed to get applied migrations", "error", err)
		os.Exit(1)
	}

	migrations, err := migrator.LoadMigrations(*migrationsPath)
	if err != nil {
		slog.Error("Failed to load migrations", "error", err)
		os.Exit(1)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}
