package storage

import (
	"database/sql"
	"fmt"

	"blendshop/internal/config"
	"blendshop/internal/logger"
	"blendshop/internal/models"

	_ "github.com/lib/pq"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a new PostgreSQL store using an existing database connection
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	log.Info("DATABASE", "Creating intent mirror storage with existing database connection")

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment_intents table: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment_intents table: %w", err)
	}

	log.Info("DATABASE", "Intent mirror storage initialized successfully with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating payment_intents table if not exists")

	intentsQuery := `
    CREATE TABLE IF NOT EXISTS payment_intents (
        intent_id VARCHAR(255) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        amount_cents BIGINT NOT NULL,
        currency VARCHAR(10) NOT NULL,
        status VARCHAR(50) NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(intentsQuery); err != nil {
		return fmt.Errorf("failed to create payment_intents table: %w", err)
	}

	// Create indexes
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payment_intents_order_id ON payment_intents(order_id);",
		"CREATE INDEX IF NOT EXISTS idx_payment_intents_status ON payment_intents(status);",
		"CREATE INDEX IF NOT EXISTS idx_payment_intents_created_at ON payment_intents(created_at);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Payment intent tables and indexes ready")
	return nil
}

// SaveIntent upserts the gateway intent mirror row. Re-requesting an intent
// for the same order refreshes status and timestamps instead of failing.
func (s *PostgreSQLStore) SaveIntent(record *models.PaymentIntentRecord) error {
	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Saving intent %s for order %s", record.IntentID, record.OrderID))

	query := `
    INSERT INTO payment_intents (
        intent_id, order_id, amount_cents, currency, status, created_at, updated_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $6)
    ON CONFLICT (intent_id) DO UPDATE SET
        status = EXCLUDED.status,
        amount_cents = EXCLUDED.amount_cents,
        updated_at = EXCLUDED.updated_at
    `

	_, err := s.db.Exec(query,
		record.IntentID, record.OrderID, record.AmountCents, record.Currency, record.Status, record.CreatedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save intent %s: %s", record.IntentID, err.Error()))
		return fmt.Errorf("failed to save intent: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Intent %s saved successfully", record.IntentID))
	return nil
}

// GetIntent retrieves an intent mirror row by gateway intent ID
func (s *PostgreSQLStore) GetIntent(intentID string) (*models.PaymentIntentRecord, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Fetching intent %s", intentID))

	query := `
    SELECT intent_id, order_id, amount_cents, currency, status, created_at, updated_at
    FROM payment_intents WHERE intent_id = $1
    `

	record := &models.PaymentIntentRecord{}
	err := s.db.QueryRow(query, intentID).Scan(
		&record.IntentID, &record.OrderID, &record.AmountCents, &record.Currency, &record.Status, &record.CreatedAt, &record.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "postgresql", fmt.Sprintf("Intent %s not found", intentID))
			return nil, fmt.Errorf("intent not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get intent %s: %s", intentID, err.Error()))
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}

	return record, nil
}

// GetIntentByOrderID retrieves the most recent intent mirror row for an order
func (s *PostgreSQLStore) GetIntentByOrderID(orderID string) (*models.PaymentIntentRecord, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Fetching intent for order %s", orderID))

	query := `
    SELECT intent_id, order_id, amount_cents, currency, status, created_at, updated_at
    FROM payment_intents WHERE order_id = $1
    ORDER BY created_at DESC LIMIT 1
    `

	record := &models.PaymentIntentRecord{}
	err := s.db.QueryRow(query, orderID).Scan(
		&record.IntentID, &record.OrderID, &record.AmountCents, &record.Currency, &record.Status, &record.CreatedAt, &record.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "postgresql", fmt.Sprintf("No intent found for order %s", orderID))
			return nil, fmt.Errorf("intent not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get intent for order %s: %s", orderID, err.Error()))
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}

	return record, nil
}

// UpdateIntentStatus updates the mirrored status after a webhook or manual sync
func (s *PostgreSQLStore) UpdateIntentStatus(intentID, status string) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Updating intent %s to status %s", intentID, status))

	query := `
    UPDATE payment_intents SET status = $1, updated_at = CURRENT_TIMESTAMP
    WHERE intent_id = $2
    `

	_, err := s.db.Exec(query, status, intentID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update intent %s: %s", intentID, err.Error()))
		return fmt.Errorf("failed to update intent: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Intent %s updated successfully", intentID))
	return nil
}

// ListIntents retrieves intent mirror rows for a specific order
func (s *PostgreSQLStore) ListIntents(orderID string, limit, offset int) ([]*models.PaymentIntentRecord, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Listing intents for order %s (limit: %d, offset: %d)", orderID, limit, offset))

	query := `
    SELECT intent_id, order_id, amount_cents, currency, status, created_at, updated_at
    FROM payment_intents
    WHERE order_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
    `

	rows, err := s.db.Query(query, orderID, limit, offset)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list intents: %s", err.Error()))
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentIntentRecord
	for rows.Next() {
		record := &models.PaymentIntentRecord{}
		err := rows.Scan(
			&record.IntentID, &record.OrderID, &record.AmountCents, &record.Currency, &record.Status, &record.CreatedAt, &record.UpdatedAt,
		)

		if err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to scan intent row: %s", err.Error()))
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Row iteration error: %s", err.Error()))
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Listed %d intents for order %s", len(records), orderID))
	return records, nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
