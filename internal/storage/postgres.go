package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"triagebot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) SaveClassification(ctx context.Context, rec *models.ClassificationRecord) error {
	query := `
		INSERT INTO classifications (message_id, guild_id, channel_id, author_id, content, category, confidence, rationale, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		rec.MessageID,
		rec.GuildID,
		rec.ChannelID,
		rec.AuthorID,
		rec.Content,
		string(rec.Category),
		rec.Confidence,
		rec.Rationale,
		string(rec.Action),
	).Scan(&rec.CreatedAt)

	// A conflicting insert returns no rows; the message was already recorded.
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error saving classification: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Seen(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM classifications WHERE message_id = $1)`,
		messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking message: %w", err)
	}
	return exists, nil
}

func (s *PostgresStorage) RecentClassifications(ctx context.Context, limit int) ([]*models.ClassificationRecord, error) {
	query := `
		SELECT message_id, guild_id, channel_id, author_id, content, category, confidence, rationale, action, created_at
		FROM classifications
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying classifications: %w", err)
	}
	defer rows.Close()

	var records []*models.ClassificationRecord
	for rows.Next() {
		rec := &models.ClassificationRecord{}
		var category, action string
		err := rows.Scan(
			&rec.MessageID,
			&rec.GuildID,
			&rec.ChannelID,
			&rec.AuthorID,
			&rec.Content,
			&category,
			&rec.Confidence,
			&rec.Rationale,
			&action,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning classification: %w", err)
		}
		rec.Category = models.Category(category)
		rec.Action = models.Action(action)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classifications: %w", err)
	}

	return records, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
