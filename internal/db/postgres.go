package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/envutil"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.Get("POSTGRES_HOST", "localhost", log)
	port := envutil.Get("POSTGRES_PORT", "5432", log)
	user := envutil.Get("POSTGRES_USER", "postgres", log)
	password := envutil.Get("POSTGRES_PASSWORD", "", log)
	name := envutil.Get("POSTGRES_NAME", "arccm", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.ComplianceMetric{},
		&types.UserComplianceRecord{},
		&types.ProgressionTrigger{},
		&types.RoleTransitionRequest{},
		&types.Notification{},
		&types.RoleAuditLog{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	// A metric referenced by user records may not be hard-deleted; the catalog
	// service enforces the same rule with a friendlier error before it reaches
	// the constraint.
	stmts := []string{
		`ALTER TABLE "user_compliance_record"
		 DROP CONSTRAINT IF EXISTS "fk_ucr_metric_id",
		 ADD CONSTRAINT "fk_ucr_metric_id"
		 FOREIGN KEY ("metric_id") REFERENCES "compliance_metric"("id")
		 ON DELETE RESTRICT`,
		`ALTER TABLE "user_compliance_record"
		 DROP CONSTRAINT IF EXISTS "fk_ucr_user_id",
		 ADD CONSTRAINT "fk_ucr_user_id"
		 FOREIGN KEY ("user_id") REFERENCES "user"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "role_transition_request"
		 DROP CONSTRAINT IF EXISTS "fk_rtr_user_id",
		 ADD CONSTRAINT "fk_rtr_user_id"
		 FOREIGN KEY ("user_id") REFERENCES "user"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "user_token"
		 DROP CONSTRAINT IF EXISTS "fk_user_token_user_id",
		 ADD CONSTRAINT "fk_user_token_user_id"
		 FOREIGN KEY ("user_id") REFERENCES "user"("id")
		 ON DELETE CASCADE`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("configure foreign keys: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
