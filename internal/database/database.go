package database

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lunaretail/posync/internal/config"
)

const (
	embeddedDataPath = "./pos_data"
	embeddedPort     = 5434
)

// DB wraps gorm.DB and owns the embedded process when running local-first.
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// Connect opens the local store. With host=localhost and no password the
// client runs fully self-contained on an embedded PostgreSQL; otherwise it
// connects to the configured external instance.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres

	isEmbedded := cfg.Host == "localhost" && cfg.Password == ""

	password := cfg.Password
	if isEmbedded {
		log.Println("📦 Local store: embedded PostgreSQL")

		reapStaleEmbedded()
		if err := waitForPort(embeddedPort); err != nil {
			return nil, err
		}

		embeddedCfg := embeddedpostgres.DefaultConfig().
			DataPath(embeddedDataPath).
			Port(uint32(embeddedPort)).
			Database(cfg.Database).
			Username(cfg.Username).
			Password("postgres")

		embedded = embeddedpostgres.NewDatabase(embeddedCfg)
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}

		cfg.Port = strconv.Itoa(embeddedPort)
		password = "postgres"
	} else {
		log.Printf("🌐 Local store: external PostgreSQL at %s:%s", cfg.Host, cfg.Port)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, password, cfg.Database,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db, embedded: embedded}, nil
}

// Close shuts down the connection and the embedded process if one is running.
func (db *DB) Close() error {
	if db.embedded != nil {
		log.Println("🛑 Stopping embedded PostgreSQL...")
		_ = db.embedded.Stop()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate triggers GORM schema synchronization
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

// reapStaleEmbedded stops a leftover postmaster from a previous crash.
// Without this the embedded start fails on a busy data directory.
func reapStaleEmbedded() {
	pidFile := filepath.Join(embeddedDataPath, "postmaster.pid")
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}

	line, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		os.Remove(pidFile)
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil || process.Signal(syscall.Signal(0)) != nil {
		os.Remove(pidFile)
		return
	}

	log.Printf("⚠️  Orphaned PostgreSQL process (PID %d), stopping...", pid)
	_ = process.Signal(syscall.SIGTERM)
	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if process.Signal(syscall.Signal(0)) != nil {
			os.Remove(pidFile)
			return
		}
	}
	_ = process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// waitForPort waits briefly for the embedded port to be released.
func waitForPort(port int) error {
	for i := 0; i < 6; i++ {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
		if err != nil {
			return nil
		}
		conn.Close()
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("port %d is in use by another process", port)
}
