package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/scout/internal/repository"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/store"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("scout"),
		tcPostgres.WithUsername("scout"),
		tcPostgres.WithPassword("scout"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://scout:scout@%s:%s/scout?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("open migrations: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.DB.Close()

	started := time.Now().UTC().Truncate(time.Second)
	run := store.Run{
		ID:         "11111111-1111-1111-1111-111111111111",
		Topic:      "solar panels",
		PlanName:   "solar",
		Outcome:    "failed",
		Error:      "search exhausted",
		CreatedAt:  started,
		FinishedAt: started,
	}
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	// Saving again with the same id updates the outcome.
	run.Outcome = "completed"
	run.Error = ""
	run.Report = "final report"
	run.FinishedAt = started.Add(time.Minute)
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun upsert: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Outcome != "completed" || got.Report != "final report" || got.Error != "" {
		t.Fatalf("unexpected run after upsert: %+v", got)
	}

	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	if err := st.CreateUser(ctx, "dev@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	id, hash, err := st.GetUserByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if id == 0 || hash != "hash" {
		t.Fatalf("unexpected user: id=%d hash=%q", id, hash)
	}
}

func TestProgressRepositoryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client, err := repository.Conn(ctx, host, port.Port(), "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("redis conn: %v", err)
	}
	defer client.Close()

	repo := repository.NewProgressRepository(client)
	p := research.Progress{RunID: "run-1", Topic: "solar panels", PlanName: "solar", Phase: "researching", Question: 2, Questions: 5, Attempt: 1}
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Phase != "researching" || got.Question != 2 {
		t.Fatalf("unexpected progress: %+v", got)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 progress entry, got %d", len(all))
	}

	if _, err := repo.Get(ctx, "missing"); err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
