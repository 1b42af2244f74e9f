//go:build integration

// Package testhelpers starts real dependencies for integration-tagged tests.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartRedis runs a redis:7-alpine container for the test and returns a connected
// client. Both are cleaned up when the test ends.
func StartRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	return client
}

// WeatherAPIConfig holds live provider credentials for integration tests.
type WeatherAPIConfig struct {
	APIKey  string
	BaseURL string
}

// LiveWeatherAPI returns provider settings from the environment and skips the
// test when WEATHERAPI_API_KEY is unset.
func LiveWeatherAPI(t *testing.T) WeatherAPIConfig {
	t.Helper()
	key := os.Getenv("WEATHERAPI_API_KEY")
	if key == "" {
		t.Skip("WEATHERAPI_API_KEY not set, skipping live provider test")
	}
	baseURL := os.Getenv("WEATHERAPI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.weatherapi.com/v1"
	}
	return WeatherAPIConfig{APIKey: key, BaseURL: baseURL}
}
