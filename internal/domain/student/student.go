package student

import (
	"context"
	"errors"
)

// Student 学生记录。与 students 表一一对应。
type Student struct {
	ID     int64  `json:"user_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Course string `json:"course"`
}

// UpdateFields 显式的可选字段更新结构。每个可更新列一个可选槽，
// 字段集合本身即更新允许列表，nil 槽不参与 SET 子句。
type UpdateFields struct {
	Name   *string `json:"name,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Course *string `json:"course,omitempty"`
}

// Empty 是否没有任何待更新字段
func (f UpdateFields) Empty() bool {
	return f.Name == nil && f.Age == nil && f.Course == nil
}

// CourseStat 单课程聚合统计
type CourseStat struct {
	Course       string  `json:"course"`
	StudentCount int     `json:"student_count"`
	AvgAge       float64 `json:"avg_age"`
}

// ErrNotFound 学生不存在
var ErrNotFound = errors.New("student not found")

// ErrNoUpdateFields 更新请求不含任何有效字段
var ErrNoUpdateFields = errors.New("no valid fields to update")

// Store 学生存储端口。实现必须在单个作用域事务内执行每条语句：
// 成功提交、失败回滚，连接在任何退出路径上都归还连接池。
type Store interface {
	List(ctx context.Context, limit, offset int) ([]Student, error)
	Get(ctx context.Context, id int64) (*Student, error)
	SearchByName(ctx context.Context, name string) ([]Student, error)
	ByCourse(ctx context.Context, course string) ([]Student, error)
	Add(ctx context.Context, s Student) (int64, error)
	Update(ctx context.Context, id int64, fields UpdateFields) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CourseStats(ctx context.Context) ([]CourseStat, error)

	// RunReadQuery 执行一条只读 SQL 并返回人类可读的结果文本。
	// 空结果返回 "No results found."，不是错误。
	RunReadQuery(ctx context.Context, query string) (string, error)
}
