package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// KVItem is the row model of the MySQL backend.
type KVItem struct {
	Key       string `gorm:"column:item_key;primaryKey;size:191"`
	Value     string `gorm:"column:item_value;type:longtext"`
	UpdatedAt time.Time
}

func (KVItem) TableName() string { return "kv_items" }

// MySQLStore persists items through gorm.
type MySQLStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewMySQLStore connects with dsn and migrates the kv_items table.
func NewMySQLStore(ctx context.Context, dsn string, log zerolog.Logger) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&KVItem{}); err != nil {
		return nil, fmt.Errorf("migrate kv_items: %w", err)
	}
	return &MySQLStore{db: db, log: log}, nil
}

func (s *MySQLStore) GetItem(ctx context.Context, key string) (string, bool) {
	var item KVItem
	err := s.db.WithContext(ctx).Where("item_key = ?", key).First(&item).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("mysql get failed")
		}
		return "", false
	}
	return item.Value, true
}

func (s *MySQLStore) SetItem(ctx context.Context, key, value string) {
	item := KVItem{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&item).Error
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("mysql set failed")
	}
}

func (s *MySQLStore) RemoveItem(ctx context.Context, key string) {
	if err := s.db.WithContext(ctx).Where("item_key = ?", key).Delete(&KVItem{}).Error; err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("mysql remove failed")
	}
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
