package datastore

import (
	"fmt"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements DataStore for MySQL and MariaDB
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	mysqlConf := settings.Output.MySQL
	if mysqlConf.Host == "" || mysqlConf.Database == "" || mysqlConf.Username == "" {
		return errors.Newf("incomplete MySQL configuration: host, database and username are required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	mysqlConf := store.Settings.Output.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlConf.Username, mysqlConf.Password,
		mysqlConf.Host, mysqlConf.Port,
		mysqlConf.Database)

	db, err := gorm.Open(mysql.Open(dsn), store.newGormConfig())
	if err != nil {
		getLogger().Error("Failed to open MySQL database",
			"host", mysqlConf.Host,
			"port", mysqlConf.Port,
			"database", mysqlConf.Database,
			"error", err)
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", "mysql").
			Context("host", mysqlConf.Host).
			Build()
	}

	store.DB = db
	// The DSN carries credentials, log host/database instead
	connInfo := fmt.Sprintf("%s:%s/%s", mysqlConf.Host, mysqlConf.Port, mysqlConf.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", connInfo)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		getLogger().Error("Failed to retrieve generic DB object", "error", err)
		return dbError(err, "close", "db_type", "mysql")
	}

	if err := sqlDB.Close(); err != nil {
		getLogger().Error("Failed to close MySQL database", "error", err)
		return dbError(err, "close", "db_type", "mysql")
	}

	if store.Settings.Debug {
		getLogger().Debug("MySQL database connection closed")
	}
	return nil
}
