package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// setupDynamoDBLocal starts DynamoDB Local and returns a client pointed at it.
func setupDynamoDBLocal(t *testing.T) *dynamodb.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "http")
	require.NoError(t, err)

	return dynamodb.New(dynamodb.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
	})
}

func TestDynamoDBStore(t *testing.T) {
	client := setupDynamoDBLocal(t)
	ctx := context.Background()

	runBackendSuite(t, func(t *testing.T) Backend {
		table := fmt.Sprintf("events-%s", uuid.NewString()[:8])
		s := NewDynamoDBStoreWithClient(client, table, "status-created_at-index")
		require.NoError(t, s.EnsureSchema(ctx))
		return s
	})
}

func TestDynamoDBStore_MissingTable(t *testing.T) {
	client := setupDynamoDBLocal(t)
	ctx := context.Background()
	s := NewDynamoDBStoreWithClient(client, "not-provisioned", "status-created_at-index")

	err := s.Put(ctx, newTestEvent(1, ""))
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = s.Query(ctx, Query{Status: models.StatusPending, Limit: 1, Descending: true})
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = s.Acknowledge(ctx, "any", 1)
	assert.ErrorIs(t, err, ErrResourceNotFound)

	assert.ErrorIs(t, s.Ping(ctx), ErrResourceNotFound)
}
