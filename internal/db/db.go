package db

import (
	"time"

	"commentroom/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect 负责建立到 Postgres 的连接，并带有简单的重试来等待容器就绪。
func Connect(dsn string) (*gorm.DB, error) {
	return ConnectWithRetry(dsn, 10)
}

func ConnectWithRetry(dsn string, attempts int) (*gorm.DB, error) {
	var gdb *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		gdb, err = Open(postgres.Open(dsn))
		if err == nil {
			return gdb, nil
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// Open 使用给定 dialector 打开连接并设置连接池，测试中可传入基于 sqlmock 的 dialector。
func Open(d gorm.Dialector) (*gorm.DB, error) {
	gdb, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return gdb, nil
}

// Migrate 自动迁移评论系统涉及的全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.RefreshToken{})
}
