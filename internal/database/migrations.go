package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations applies every migration in order. Each statement is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		createUsersTable,
		createProjectRequestsTable,
		createNegotiationMessagesTable,
		createPaymentsTable,
		createBookingsTable,
		createCreatorBalancesTable,
	}

	for i, migration := range migrations {
		slog.Debug("running migration", "step", i+1, "total", len(migrations))
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("migrations completed", "count", len(migrations))
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL UNIQUE,
  name TEXT,
  role TEXT NOT NULL DEFAULT 'client',
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  last_login_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`

const createProjectRequestsTable = `
CREATE TABLE IF NOT EXISTS project_requests (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_creator',
  package JSONB,
  is_inquiry BOOLEAN NOT NULL DEFAULT false,
  service_type TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  event_date TEXT NOT NULL DEFAULT '',
  duration TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  budget TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  creator_name TEXT NOT NULL DEFAULT '',
  creator_specialisation TEXT NOT NULL DEFAULT '',
  creator_starting_price BIGINT,
  creator_message TEXT NOT NULL DEFAULT '',
  current_offer JSONB,
  final_offer JSONB,
  payment_id TEXT,
  booking_id TEXT,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_project_requests_client_id ON project_requests(client_id);
CREATE INDEX IF NOT EXISTS idx_project_requests_creator_id ON project_requests(creator_id, created_at DESC);
`

const createNegotiationMessagesTable = `
CREATE TABLE IF NOT EXISTS negotiation_messages (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL REFERENCES project_requests(id) ON DELETE CASCADE,
  sender TEXT NOT NULL,
  sender_id TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'text',
  text TEXT NOT NULL DEFAULT '',
  price BIGINT,
  deliverables TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'sent',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_negotiation_messages_request ON negotiation_messages(request_id, id);
`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL REFERENCES project_requests(id) ON DELETE CASCADE,
  client_id TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  base_amount BIGINT NOT NULL,
  platform_fee BIGINT NOT NULL,
  gst BIGINT NOT NULL,
  amount BIGINT NOT NULL CHECK (amount > 0),
  currency TEXT NOT NULL DEFAULT 'INR',
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_order_id TEXT NOT NULL DEFAULT '',
  gateway_payment_id TEXT,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  completed_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_payments_request_id ON payments(request_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payments_gateway_order_id ON payments(gateway_order_id);
`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL UNIQUE REFERENCES project_requests(id) ON DELETE CASCADE,
  payment_id TEXT NOT NULL REFERENCES payments(id),
  client_id TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  final_amount BIGINT NOT NULL,
  deliverables TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'confirmed',
  escrow_status TEXT NOT NULL DEFAULT 'held',
  dispute_reason TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bookings_client_id ON bookings(client_id);
`

const createCreatorBalancesTable = `
CREATE TABLE IF NOT EXISTS creator_balances (
  creator_id TEXT PRIMARY KEY,
  amount BIGINT NOT NULL DEFAULT 0,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`
