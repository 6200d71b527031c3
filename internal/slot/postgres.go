package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"olive-mapper/internal/logger"

	_ "github.com/lib/pq"
)

// Postgres：共享数据库中的槽位表 _olive_slots；多台设备各自使用独立 PG_SLOT_NAMESPACE
type Postgres struct {
	db *sql.DB
	ns string
}

// BuildPostgresDSNFromEnv：由 PG_* 环境变量拼接 DSN，缺省连接本机
func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	db := os.Getenv("PG_DB")
	if db == "" {
		db = "olive"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

// OpenPostgresFromEnv：打开连接、探活并确保表结构
func OpenPostgresFromEnv(ctx context.Context) (*Postgres, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	maxOpen := 5
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			maxOpen = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ns := os.Getenv("PG_SLOT_NAMESPACE")
	if ns == "" {
		ns = "default"
	}
	return AttachPostgres(ctx, db, ns)
}

// AttachPostgres：复用已有连接池
func AttachPostgres(ctx context.Context, db *sql.DB, namespace string) (*Postgres, error) {
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Postgres{db: db, ns: namespace}, nil
}

// 背景：首次运行自动建表；IF NOT EXISTS 避免与既有结构冲突
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _olive_slots (
            namespace TEXT NOT NULL,
            key TEXT NOT NULL,
            payload BYTEA NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (namespace, key)
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

func (p *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM _olive_slots WHERE namespace=$1 AND key=$2`, p.ns, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select slot %s: %w", key, err)
	}
	return b, nil
}

func (p *Postgres) Save(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO _olive_slots(namespace, key, payload, updated_at)
        VALUES($1, $2, $3, now())
        ON CONFLICT (namespace, key) DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()`,
		p.ns, key, data)
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }
