package server

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestCloseConnections_ClosesGormHandle(t *testing.T) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=vm password=vm dbname=vm sslmode=disable",
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)

	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), gdb: gdb}
	s.closeConnections()

	assert.ErrorContains(t, sqlDB.Ping(), "database is closed")
}
