package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quiz-progression/internal/app"
	"quiz-progression/internal/config"
	"quiz-progression/internal/domain"
	"quiz-progression/internal/infra/memory"
)

func TestBuildWiringMemoryDriverServesDemoQuiz(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = driverMemory

	w, err := buildWiring(context.Background(), cfg, newLoggerTo(io.Discard, cfg))
	if err != nil {
		t.Fatalf("build wiring: %v", err)
	}
	defer w.close()
	if _, ok := w.deps.Locker.(*memory.Locker); !ok {
		t.Fatalf("expected in-memory locker, got %T", w.deps.Locker)
	}

	engine := app.NewEngine(w.deps)
	reply, err := engine.Handle(context.Background(), "u-1", domain.StartEvent(domain.Profile{Username: "alice"}))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply.State != domain.StateIntro || reply.Prompt.LevelName != "Welcome" {
		t.Fatalf("unexpected first reply %+v", reply)
	}
}

func TestBuildWiringRejectsRedisLockWithoutRedis(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = driverMemory
	cfg.Lock.Backend = "redis"

	if _, err := buildWiring(context.Background(), cfg, newLoggerTo(io.Discard, cfg)); err == nil {
		t.Fatalf("expected error for redis lock without redis addr")
	}
}

func TestSeedThenServeFromSQLite(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(demoCatalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	var cfg config.Config
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(dir, "quiz.db")
	cfg.Log.Level = "error"

	ctx := context.Background()
	if err := runSeed(ctx, cfg, catalogPath); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// seeding twice keeps the content stable
	if err := runSeed(ctx, cfg, catalogPath); err != nil {
		t.Fatalf("seed again: %v", err)
	}
	renamed := strings.Replace(demoCatalogYAML, "name: Warm-up", "name: Warm up", 1)
	if err := os.WriteFile(catalogPath, []byte(renamed), 0o600); err != nil {
		t.Fatalf("write renamed catalog: %v", err)
	}
	if err := runSeed(ctx, cfg, catalogPath); err != nil {
		t.Fatalf("seed after rename: %v", err)
	}

	w, err := buildWiring(ctx, cfg, newLoggerTo(io.Discard, cfg))
	if err != nil {
		t.Fatalf("build wiring: %v", err)
	}
	defer w.close()

	cat, err := w.deps.Catalog.GetCatalog(ctx)
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if len(cat.Levels) != 4 || len(cat.Questions) != 2 {
		t.Fatalf("unexpected catalog %d levels %d questions", len(cat.Levels), len(cat.Questions))
	}
	if cat.Levels[1].Name != "Warm up" {
		t.Fatalf("expected renamed level, got %q", cat.Levels[1].Name)
	}

	engine := app.NewEngine(w.deps)
	reply, err := engine.Handle(ctx, "u-1", domain.StartEvent(domain.Profile{}))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply.State != domain.StateIntro {
		t.Fatalf("expected intro, got %s", reply.State)
	}
}
