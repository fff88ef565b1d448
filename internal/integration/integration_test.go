package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"quiz-progression/internal/app"
	"quiz-progression/internal/domain"
	pgloader "quiz-progression/internal/infra/postgres"
	infraredis "quiz-progression/internal/infra/redis"
	"quiz-progression/internal/infra/store"
	"quiz-progression/internal/infra/store/migrations"
)

func TestProgressionEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db, err := store.Open(store.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if _, err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.SeedCatalog(ctx, db, sampleCatalog()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	// Two engines sharing storage stand in for two service instances.
	newEngine := func() *app.Engine {
		return app.NewEngine(app.Deps{
			UnitOfWork: store.NewUnitOfWork(db),
			Locker:     infraredis.NewLocker(redisClient, 5*time.Second, nil),
			Catalog:    infraredis.NewCatalogRepository(redisClient, pgloader.NewCatalogLoader(pool), 5*time.Minute, nil),
		})
	}
	first, second := newEngine(), newEngine()

	reply := mustHandle(t, first, domain.StartEvent(domain.Profile{Username: "alice"}))
	if reply.State != domain.StateIntro {
		t.Fatalf("expected intro, got %s", reply.State)
	}
	reply = mustHandle(t, second, domain.AdvanceEvent())
	if reply.State != domain.StateAwaitingAdvance {
		t.Fatalf("expected awaiting_advance, got %s", reply.State)
	}
	reply = mustHandle(t, first, domain.AdvanceEvent())
	if reply.State != domain.StateQuestion || reply.Prompt.Text != "What is 2 + 2?" {
		t.Fatalf("expected first question, got %s %q", reply.State, reply.Prompt.Text)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rewards int
	)
	for i := 0; i < 8; i++ {
		engine := first
		if i%2 == 1 {
			engine = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := engine.Handle(ctx, "tg-42", domain.AnswerEvent(" 4 "))
			if err != nil {
				t.Errorf("answer: %v", err)
				return
			}
			if r.HasNotice(domain.NoticeCorrect) {
				mu.Lock()
				rewards++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if rewards != 1 {
		t.Fatalf("expected exactly one reward, got %d", rewards)
	}

	reply = mustHandle(t, second, domain.AdvanceEvent())
	if reply.Prompt.LevelName != "Capitals" {
		t.Fatalf("expected Capitals, got %q", reply.Prompt.LevelName)
	}
	reply = mustHandle(t, first, domain.SkipEvent())
	if reply.State != domain.StateReturnToSkipped || len(reply.Prompt.Choices) != 1 {
		t.Fatalf("expected one skipped level on offer, got %s %v", reply.State, reply.Prompt.Choices)
	}

	// A fresh instance resumes from the stored snapshot.
	reply = mustHandle(t, newEngine(), domain.StartEvent(domain.Profile{}))
	if reply.State != domain.StateReturnToSkipped || !reply.HasNotice(domain.NoticeResumed) {
		t.Fatalf("expected resumed return_to_skipped, got %+v", reply)
	}

	reply = mustHandle(t, second, domain.SelectSkippedEvent("capitals"))
	if reply.State != domain.StateQuestion {
		t.Fatalf("expected question, got %s", reply.State)
	}
	mustHandle(t, first, domain.AnswerEvent("paris"))
	reply = mustHandle(t, second, domain.AdvanceEvent())
	if reply.State != domain.StateCompleted || reply.Balance != 30 {
		t.Fatalf("expected completed with balance 30, got %s %d", reply.State, reply.Balance)
	}
}

func mustHandle(t *testing.T, engine *app.Engine, ev domain.Event) domain.Reply {
	t.Helper()
	reply, err := engine.Handle(context.Background(), "tg-42", ev)
	if err != nil {
		t.Fatalf("%s: %v", ev.Kind, err)
	}
	return reply
}

func sampleCatalog() domain.Catalog {
	catalog := domain.Catalog{
		Levels: []domain.Level{
			{Rank: 1, Name: "Welcome", IntroText: "Hi there", Kind: domain.KindIntro},
			{Rank: 2, Name: "Arithmetic", Reward: 10, Kind: domain.KindQuestion},
			{Rank: 3, Name: "Capitals", Reward: 20, Kind: domain.KindQuestion},
		},
	}
	prepared, err := catalog.Prepare(time.Now())
	if err != nil {
		panic(err)
	}
	prepared.Questions = []domain.Question{
		{LevelID: prepared.Levels[1].ID, Text: "What is 2 + 2?", Answer: "4"},
		{LevelID: prepared.Levels[2].ID, Text: "Capital of France?", Answer: "Paris"},
	}
	return prepared
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
