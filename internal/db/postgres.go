package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
	"github.com/ArtisanClarinets/eccb-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "eccb", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(AllModels()...); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		table, name, column, refTable, refColumn, onDelete string
	}{
		{"piece_file", "fk_piece_file_piece_id", "piece_id", "piece", "id", "CASCADE"},
		{"piece_part", "fk_piece_part_piece_id", "piece_id", "piece", "id", "CASCADE"},
		{"piece_part", "fk_piece_part_file_id", "file_id", "piece_file", "id", "CASCADE"},
		{"piece_part", "fk_piece_part_instrument_id", "instrument_id", "instrument", "id", "RESTRICT"},
		{"piece", "fk_piece_composer_id", "composer_id", "person", "id", "SET NULL"},
		{"piece", "fk_piece_publisher_id", "publisher_id", "publisher", "id", "SET NULL"},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`
			DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
					ALTER TABLE %q ADD CONSTRAINT %q
					FOREIGN KEY (%q) REFERENCES %q(%q) ON DELETE %s;
				END IF;
			END $$;`,
			c.name, c.table, c.name, c.column, c.refTable, c.refColumn, c.onDelete)
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Error("Failed to add foreign key constraint", "constraint", c.name, "error", err)
			return err
		}
	}
	return nil
}

// AllModels lists every gorm model the service migrates. Shared with
// the sqlite-backed test setup.
func AllModels() []any {
	return []any{
		&types.User{},
		&types.UploadSession{},
		&types.Person{},
		&types.Publisher{},
		&types.Instrument{},
		&types.Piece{},
		&types.PieceFile{},
		&types.PiecePart{},
		&types.AuditEvent{},
	}
}
