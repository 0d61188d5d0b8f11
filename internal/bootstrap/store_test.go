package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/pkg/config"
	"github.com/YashBawari18/Online-TicketConsession/pkg/database"
)

func TestOpenStoreMemory(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{Driver: config.GatewayMemory}}
	store, err := OpenStore(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))

	ctx := context.Background()
	_, err = store.Gateway.Insert(ctx, "admins", gateway.Row{"id": "a1", "username": "registrar"})
	require.NoError(t, err)
	_, err = store.Gateway.Insert(ctx, "admins", gateway.Row{"id": "a2", "username": "registrar"})
	assert.True(t, errors.Is(err, gateway.ErrDuplicate))

	_, err = store.Migrate(database.Up, 0)
	assert.Error(t, err)
}

func TestOpenStoreRejectsBadConfig(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Gateway: config.GatewayConfig{Driver: "mongo"}}, nil, nil)
	assert.Error(t, err)

	_, err = OpenStore(context.Background(), &config.Config{Gateway: config.GatewayConfig{Driver: config.GatewaySupabase}}, nil, nil)
	assert.Error(t, err)
}
