package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/storage"
)

// Store SQL 数据库存储实现（默认 SQLite 本地文件，也支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *gorm.DB
	driverName string
}

var _ storage.AliasStore = (*Store)(nil)

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	switch driverName {
	case "sqlite":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		store, err := NewStoreWithDialector(sqlite.Open(dsn))
		if err != nil {
			return nil, err
		}
		store.driverName = driverName
		return store, nil
	case "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, mysql, postgres)", driverName)
	}

	// 打开数据库连接
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var dialector gorm.Dialector
	if driverName == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	store, err := open(dialector)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.driverName = driverName
	return store, nil
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
//
// SQLite 只允许一个写连接，连接数固定为 1 且不过期，":memory:" 数据库因此在整个生命周期内保持可见。
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	store, err := open(dialector)
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	store.driverName = dialector.Name()
	return store, nil
}

func open(dialector gorm.Dialector) (*Store, error) {
	// 配置 GORM
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&aliasRecord{},
		&mailboxRecord{},
		&aliasMailboxRecord{},
	); err != nil {
		return err
	}
	return s.backfillSearchText()
}

// backfillSearchText 为检索列出现之前写入的行补全检索列
func (s *Store) backfillSearchText() error {
	var rows []aliasRecord
	err := s.db.Select("id", "email", "note", "name").
		Where("search_text IS NULL OR search_text = ?", "").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load rows without search text: %w", err)
	}
	for _, row := range rows {
		text := searchText(row.Email, row.Note, row.Name)
		if err := s.db.Model(&aliasRecord{}).Where("id = ?", row.ID).Update("search_text", text).Error; err != nil {
			return fmt.Errorf("failed to backfill search text: %w", err)
		}
	}
	return nil
}

// Driver 返回数据库类型
func (s *Store) Driver() string {
	return s.driverName
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("database connection is nil: %w", err)
	}
	return sqlDB.Ping()
}

// Upsert 插入或覆盖别名
func (s *Store) Upsert(alias domain.Alias) error {
	return s.UpsertMany([]domain.Alias{alias})
}

// UpsertMany 在一个事务内批量插入或覆盖
func (s *Store) UpsertMany(aliases []domain.Alias) error {
	if len(aliases) == 0 {
		return nil
	}
	for _, alias := range aliases {
		if err := storage.ValidateAlias(alias); err != nil {
			return err
		}
	}

	aliasRows, mailboxRows, linkRows := toRecords(aliases)
	ids := make([]int64, 0, len(aliasRows))
	for _, row := range aliasRows {
		ids = append(ids, row.ID)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&aliasRows, 100).Error; err != nil {
			return fmt.Errorf("failed to upsert aliases: %w", err)
		}
		if len(mailboxRows) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&mailboxRows, 100).Error; err != nil {
				return fmt.Errorf("failed to upsert mailboxes: %w", err)
			}
		}
		if err := tx.Where("alias_id IN ?", ids).Delete(&aliasMailboxRecord{}).Error; err != nil {
			return fmt.Errorf("failed to reset alias mailboxes: %w", err)
		}
		if len(linkRows) > 0 {
			if err := tx.CreateInBatches(&linkRows, 100).Error; err != nil {
				return fmt.Errorf("failed to link alias mailboxes: %w", err)
			}
		}
		return nil
	})
}

// Delete 删除别名
func (s *Store) Delete(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("alias_id = ?", id).Delete(&aliasMailboxRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&aliasRecord{}, id).Error
	})
}

// Get 根据 ID 获取别名
func (s *Store) Get(id int64) (*domain.Alias, error) {
	var row aliasRecord
	if err := s.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, err
	}

	aliases, err := s.hydrate([]aliasRecord{row})
	if err != nil {
		return nil, err
	}
	return &aliases[0], nil
}

// Page 返回第 index 页
func (s *Store) Page(index, size int) ([]domain.Alias, error) {
	return s.SearchPage(index, size, "")
}

// SearchPage 返回匹配 term 的第 index 页
func (s *Store) SearchPage(index, size int, term string) ([]domain.Alias, error) {
	if index < 0 || size <= 0 {
		return []domain.Alias{}, nil
	}

	query := s.db.Model(&aliasRecord{})
	if term = strings.TrimSpace(term); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		query = query.Where("search_text LIKE ? ESCAPE '!'", pattern)
	}

	var rows []aliasRecord
	err := query.
		Order("creation_timestamp DESC").
		Order("id DESC").
		Offset(index * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.hydrate(rows)
}

// ClearAll 清空全部缓存
func (s *Store) ClearAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&aliasMailboxRecord{}, &aliasRecord{}, &mailboxRecord{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Count 返回缓存的别名数量
func (s *Store) Count() (int, error) {
	var count int64
	if err := s.db.Model(&aliasRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// hydrate 为记录补全关联邮箱，保持记录原有顺序
func (s *Store) hydrate(rows []aliasRecord) ([]domain.Alias, error) {
	result := make([]domain.Alias, 0, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var links []linkedMailbox
	err := s.db.Table("alias_mailboxes").
		Select("alias_mailboxes.alias_id, alias_mailboxes.mailbox_id, alias_mailboxes.position, mailbox_records.email").
		Joins("JOIN mailbox_records ON mailbox_records.id = alias_mailboxes.mailbox_id").
		Where("alias_mailboxes.alias_id IN ?", ids).
		Order("alias_mailboxes.alias_id").
		Order("alias_mailboxes.position").
		Scan(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load alias mailboxes: %w", err)
	}

	byAlias := make(map[int64][]domain.MailboxLite, len(rows))
	for _, link := range links {
		byAlias[link.AliasID] = append(byAlias[link.AliasID], domain.MailboxLite{ID: link.MailboxID, Email: link.Email})
	}

	for _, row := range rows {
		result = append(result, row.toDomain(byAlias[row.ID]))
	}
	return result, nil
}

// escapeLike 转义 LIKE 通配符，转义字符为 '!'
func escapeLike(term string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(term)
}
