package dialect

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the pooled *gorm.DB for the configured database type,
// applying pool-lifecycle settings exactly as the teacher's
// database/postgres.Init does: gorm.Open + SetMaxIdleConns/
// SetMaxOpenConns/SetConnMaxLifetime/SetConnMaxIdleTime on the
// underlying *sql.DB. gorm is never used beyond this point as a query
// builder — CrudEngine issues all further SQL via .Raw/.Exec.
func Connect(cfg *config.Config) (*gorm.DB, Dialect, error) {
	switch cfg.Database.Type {
	case config.DBMySQL:
		dsn := mysqlDSN(cfg.MySQL)
		db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to mysql")
		}
		if err := tunePool(db, cfg.Database); err != nil {
			return nil, nil, err
		}
		return db, MySQL{}, nil
	case config.DBPostgres:
		dsn := postgresDSN(cfg.Postgres)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to postgres")
		}
		if err := tunePool(db, cfg.Database); err != nil {
			return nil, nil, err
		}
		return db, Postgres{}, nil
	default:
		return nil, nil, errors.Newf("unsupported database type: %q", cfg.Database.Type)
	}
}

func tunePool(gdb *gorm.DB, cfg config.Database) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return nil
}

func mysqlDSN(cfg config.MySQL) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Charset, cfg.ParseTime)
}

func postgresDSN(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s connect_timeout=5",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)
}
