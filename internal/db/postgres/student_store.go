package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hybridrag/internal/domain/student"
	applog "hybridrag/internal/platform/log"
)

// StudentStore PostgreSQL 学生存储。
// 每条语句在一个作用域事务里执行：成功提交、失败回滚，
// 连接随事务结束归还 database/sql 连接池（上限由池配置约束）。
type StudentStore struct {
	db *sql.DB
}

// NewStudentStore 创建学生存储
func NewStudentStore(db *sql.DB) *StudentStore {
	return &StudentStore{db: db}
}

// EnsureSchema 确保 students 表存在
func (s *StudentStore) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS students (
		user_id SERIAL PRIMARY KEY,
		name    VARCHAR(255) NOT NULL,
		age     INTEGER NOT NULL,
		course  VARCHAR(255) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_course ON students (LOWER(course));
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure students table: %w", err)
	}
	return nil
}

// withTx 作用域事务：fn 返回 nil 则提交，否则回滚。
// 任何退出路径（包括 panic 之外的错误路径）都会结束事务并释放连接。
func (s *StudentStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			applog.Warn("[Student/Store] Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List 分页查询全部学生
func (s *StudentStore) List(ctx context.Context, limit, offset int) ([]student.Student, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var out []student.Student
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT user_id, name, age, course FROM students ORDER BY user_id LIMIT $1 OFFSET $2`,
			limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanStudents(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return out, nil
}

// Get 按 ID 查询单个学生
func (s *StudentStore) Get(ctx context.Context, id int64) (*student.Student, error) {
	var st student.Student
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT user_id, name, age, course FROM students WHERE user_id = $1`, id)
		return row.Scan(&st.ID, &st.Name, &st.Age, &st.Course)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, student.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	return &st, nil
}

// SearchByName 按姓名模糊查询（大小写不敏感）
func (s *StudentStore) SearchByName(ctx context.Context, name string) ([]student.Student, error) {
	var out []student.Student
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT user_id, name, age, course FROM students WHERE name ILIKE $1 ORDER BY name`,
			"%"+name+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanStudents(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search students by name: %w", err)
	}
	return out, nil
}

// ByCourse 按课程查询（大小写不敏感模糊匹配）
func (s *StudentStore) ByCourse(ctx context.Context, course string) ([]student.Student, error) {
	var out []student.Student
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT user_id, name, age, course FROM students WHERE course ILIKE $1 ORDER BY name`,
			"%"+course+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanStudents(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list students by course: %w", err)
	}
	return out, nil
}

// Add 新增学生，返回生成的 ID
func (s *StudentStore) Add(ctx context.Context, st student.Student) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO students (name, age, course) VALUES ($1, $2, $3) RETURNING user_id`,
			st.Name, st.Age, st.Course).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("add student: %w", err)
	}
	applog.Info("[Student/Store] Student added", "id", id, "name", st.Name)
	return id, nil
}

// Update 按允许列表更新字段。SET 子句只由 UpdateFields 的非 nil 槽构成。
func (s *StudentStore) Update(ctx context.Context, id int64, fields student.UpdateFields) error {
	if fields.Empty() {
		return student.ErrNoUpdateFields
	}

	var (
		sets []string
		args []interface{}
	)
	if fields.Name != nil {
		args = append(args, *fields.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if fields.Age != nil {
		args = append(args, *fields.Age)
		sets = append(sets, fmt.Sprintf("age = $%d", len(args)))
	}
	if fields.Course != nil {
		args = append(args, *fields.Course)
		sets = append(sets, fmt.Sprintf("course = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE students SET %s WHERE user_id = $%d",
		strings.Join(sets, ", "), len(args))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return student.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, student.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update student %d: %w", id, err)
	}
	return nil
}

// Delete 删除学生
func (s *StudentStore) Delete(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE user_id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return student.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, student.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("delete student %d: %w", id, err)
	}
	return nil
}

// Count 学生总数
func (s *StudentStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// CourseStats 课程维度统计
func (s *StudentStore) CourseStats(ctx context.Context) ([]student.CourseStat, error) {
	var out []student.CourseStat
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT course, COUNT(*) AS student_count, AVG(age) AS avg_age
			 FROM students GROUP BY course ORDER BY student_count DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cs student.CourseStat
			if err := rows.Scan(&cs.Course, &cs.StudentCount, &cs.AvgAge); err != nil {
				return err
			}
			out = append(out, cs)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("course stats: %w", err)
	}
	return out, nil
}

// RunReadQuery 执行一条只读 SQL 并把结果格式化为文本。
// 调用方负责只读校验；这里仍在事务内执行，失败回滚。
func (s *StudentStore) RunReadQuery(ctx context.Context, query string) (string, error) {
	var formatted string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}

		var lines []string
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			pairs := make([]string, len(cols))
			for i, col := range cols {
				pairs[i] = fmt.Sprintf("%s: %s", col, formatValue(values[i]))
			}
			lines = append(lines, "{"+strings.Join(pairs, ", ")+"}")
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(lines) == 0 {
			formatted = "No results found."
		} else {
			formatted = strings.Join(lines, "\n")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return formatted, nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func scanStudents(rows *sql.Rows) ([]student.Student, error) {
	var out []student.Student
	for rows.Next() {
		var st student.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Age, &st.Course); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
