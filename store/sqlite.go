package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite 把版本内容保存在 files(version, path, content) 表中。
type SQLite struct {
	db *sql.DB
}

var _ Source = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	version INTEGER NOT NULL,
	path    TEXT    NOT NULL,
	content TEXT    NOT NULL,
	PRIMARY KEY (version, path)
);`

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库结构失败: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Put 在一个事务中写入（或覆盖）一个版本的全部文件。
func (s *SQLite) Put(ctx context.Context, version int, files map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO files (version, path, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()
	for path, content := range files {
		if _, err := stmt.ExecContext(ctx, version, path, content); err != nil {
			return fmt.Errorf("写入 v%d/%s 失败: %w", version, path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Files 读取一个版本的全部文件。
func (s *SQLite) Files(ctx context.Context, version int) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content FROM files WHERE version = ?`, version)
	if err != nil {
		return nil, fmt.Errorf("查询版本 v%d 失败: %w", version, err)
	}
	defer rows.Close()

	files := map[string]string{}
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, fmt.Errorf("读取版本 v%d 失败: %w", version, err)
		}
		files[path] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取版本 v%d 失败: %w", version, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: v%d", ErrVersionNotFound, version)
	}
	return files, nil
}

// Versions 返回已保存的版本号，升序。
func (s *SQLite) Versions(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT version FROM files ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("查询版本列表失败: %w", err)
	}
	defer rows.Close()
	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
