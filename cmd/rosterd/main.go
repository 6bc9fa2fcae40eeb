// Command rosterd is the roster server daemon. It opens the SQLite database,
// wires the task engine to the HTTP API and serves until SIGINT or SIGTERM.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/roster/comms"
	"github.com/GoCodeAlone/roster/config"
	"github.com/GoCodeAlone/roster/department"
	"github.com/GoCodeAlone/roster/internal/logging"
	"github.com/GoCodeAlone/roster/internal/storage"
	"github.com/GoCodeAlone/roster/internal/version"
	"github.com/GoCodeAlone/roster/server"
	"github.com/GoCodeAlone/roster/task"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "", "path to roster YAML config (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "rosterd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer := logging.New(cfg.Log)
	defer closer.Close() //nolint:errcheck
	logger.Info("starting rosterd", slog.String("version", version.String()))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	departments := department.NewSQLiteStore(db)
	bus := comms.NewInMemoryBus(0)

	srv := server.New(*cfg, version.Version, logger)
	srv.SetEngine(task.NewEngine(task.NewSQLiteStore(db), departments))
	srv.SetDepartments(departments)
	srv.SetBus(bus)
	if len(cfg.Auth.Users) == 0 {
		logger.Warn("no users configured; every login will fail")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", slog.Any("err", err))
	}
	logger.Info("shutdown complete")
	return nil
}

// hashPassword prints the bcrypt hash of the password given as the first
// argument, or of the first line of stdin when no argument is given.
func hashPassword(args []string, in io.Reader, out io.Writer) error {
	var pw string
	if len(args) > 0 {
		pw = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		return errors.New("usage: rosterd hash-password <password> (or pipe it on stdin)")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = fmt.Fprintln(out, string(hash))
	return err
}
