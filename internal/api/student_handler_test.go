package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"hybridrag/internal/domain/student"
)

// memStore 测试用内存学生存储
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]student.Student
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rows: make(map[int64]student.Student)}
}

func (m *memStore) List(_ context.Context, _, _ int) ([]student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []student.Student
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, student.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) SearchByName(_ context.Context, name string) ([]student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []student.Student
	for _, s := range m.rows {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(name)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ByCourse(_ context.Context, course string) ([]student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []student.Student
	for _, s := range m.rows {
		if strings.EqualFold(s.Course, course) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Add(_ context.Context, s student.Student) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	m.nextID++
	m.rows[s.ID] = s
	return s.ID, nil
}

func (m *memStore) Update(_ context.Context, id int64, fields student.UpdateFields) error {
	if fields.Empty() {
		return student.ErrNoUpdateFields
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return student.ErrNotFound
	}
	if fields.Name != nil {
		s.Name = *fields.Name
	}
	if fields.Age != nil {
		s.Age = *fields.Age
	}
	if fields.Course != nil {
		s.Course = *fields.Course
	}
	m.rows[id] = s
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return student.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memStore) CourseStats(_ context.Context) ([]student.CourseStat, error) {
	return nil, nil
}

func (m *memStore) RunReadQuery(_ context.Context, _ string) (string, error) {
	return "No results found.", nil
}

func newStudentRouter(store student.Store) http.Handler {
	r := chi.NewRouter()
	NewStudentHandler(store).RegisterRoutes(r)
	return r
}

func TestStudentCRUDLifecycle(t *testing.T) {
	store := newMemStore()
	handler := newStudentRouter(store)

	// Create
	req := httptest.NewRequest(http.MethodPost, "/students",
		strings.NewReader(`{"name":"Alice","age":22,"course":"Python"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	// Get
	req = httptest.NewRequest(http.MethodGet, "/students/1", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rr.Code)
	}
	var envelope struct {
		Data student.Student `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if envelope.Data.Name != "Alice" || envelope.Data.ID != 1 {
		t.Errorf("got student %+v", envelope.Data)
	}

	// Partial update: only age
	req = httptest.NewRequest(http.MethodPut, "/students/1", strings.NewReader(`{"age":23}`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	got, _ := store.Get(context.Background(), 1)
	if got.Age != 23 || got.Name != "Alice" || got.Course != "Python" {
		t.Errorf("after partial update: %+v", got)
	}

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/students/1", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/students/1", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestStudentUpdateWithoutFields(t *testing.T) {
	store := newMemStore()
	_, _ = store.Add(context.Background(), student.Student{Name: "Bob", Age: 20, Course: "ML"})
	handler := newStudentRouter(store)

	req := httptest.NewRequest(http.MethodPut, "/students/1", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty update", rr.Code)
	}
}

func TestStudentCreateValidation(t *testing.T) {
	handler := newStudentRouter(newMemStore())

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"age":20,"course":"ML"}`},
		{"missing course", `{"name":"Bob","age":20}`},
		{"non-positive age", `{"name":"Bob","age":0,"course":"ML"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestStudentListFilters(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_, _ = store.Add(ctx, student.Student{Name: "Alice", Age: 22, Course: "Python"})
	_, _ = store.Add(ctx, student.Student{Name: "Bob", Age: 24, Course: "ML"})
	_, _ = store.Add(ctx, student.Student{Name: "Alina", Age: 21, Course: "Python"})
	handler := newStudentRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/students?name=ali", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var envelope struct {
		Data []student.Student `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Errorf("name filter returned %d students, want 2", len(envelope.Data))
	}
}
