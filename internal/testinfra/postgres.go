//go:build integration

// Package testinfra starts throwaway containers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = "5432/tcp"
	postgresUser  = "review"
	postgresPass  = "review"
	postgresDB    = "review_service_test"
)

// PostgresContainer is a running PostgreSQL instance.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
}

// SkipIfNoDocker skips the test when no Docker daemon is reachable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// NewPostgresContainer starts PostgreSQL and waits until it accepts
// connections. The container is terminated when the test ends.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	SkipIfNoDocker(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPass,
			"POSTGRES_DB":       postgresDB,
		},
		// The server restarts once after initdb, hence two occurrences.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(postgresPort),
		).WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		URL: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPass, host, port.Port(), postgresDB),
	}
}
