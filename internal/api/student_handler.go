package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hybridrag/internal/domain/student"
	applog "hybridrag/internal/platform/log"
)

// StudentHandler 学生管理 API 处理器
type StudentHandler struct {
	store student.Store
}

func NewStudentHandler(store student.Store) *StudentHandler {
	return &StudentHandler{store: store}
}

func (h *StudentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/students", func(r chi.Router) {
		r.Post("/", h.CreateStudent)
		r.Get("/", h.ListStudents)
		r.Get("/stats", h.GetStats)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Delete("/{id}", h.DeleteStudent)
	})
}

// createStudentRequest 创建学生请求体
type createStudentRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Course string `json:"course"`
}

// statsResponse 统计响应体
type statsResponse struct {
	TotalStudents int                 `json:"total_students"`
	Courses       []student.CourseStat `json:"courses"`
}

func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Course == "" {
		writeError(w, http.StatusBadRequest, "name and course are required")
		return
	}
	if req.Age <= 0 {
		writeError(w, http.StatusBadRequest, "age must be positive")
		return
	}

	id, err := h.store.Add(r.Context(), student.Student{
		Name:   req.Name,
		Age:    req.Age,
		Course: req.Course,
	})
	if err != nil {
		applog.Error("[Student] Create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create student")
		return
	}
	writeJSON(w, http.StatusCreated, student.Student{
		ID:     id,
		Name:   req.Name,
		Age:    req.Age,
		Course: req.Course,
	})
}

// ListStudents 列表查询，支持 name / course 过滤与分页
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		students []student.Student
		err      error
	)
	switch {
	case q.Get("name") != "":
		students, err = h.store.SearchByName(r.Context(), q.Get("name"))
	case q.Get("course") != "":
		students, err = h.store.ByCourse(r.Context(), q.Get("course"))
	default:
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		students, err = h.store.List(r.Context(), limit, offset)
	}
	if err != nil {
		applog.Error("[Student] List failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	st, err := h.store.Get(r.Context(), id)
	if errors.Is(err, student.ErrNotFound) {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		applog.Error("[Student] Get failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateStudent 部分更新，仅更新请求体里出现的字段
func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	var fields student.UpdateFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.store.Update(r.Context(), id, fields)
	switch {
	case errors.Is(err, student.ErrNoUpdateFields):
		writeError(w, http.StatusBadRequest, "at least one field is required")
	case errors.Is(err, student.ErrNotFound):
		writeError(w, http.StatusNotFound, "student not found")
	case err != nil:
		applog.Error("[Student] Update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update student")
	default:
		writeJSON(w, http.StatusOK, map[string]int64{"user_id": id})
	}
}

func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	err = h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, student.ErrNotFound):
		writeError(w, http.StatusNotFound, "student not found")
	case err != nil:
		applog.Error("[Student] Delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete student")
	default:
		writeJSON(w, http.StatusOK, map[string]int64{"user_id": id})
	}
}

func (h *StudentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Count(r.Context())
	if err != nil {
		applog.Error("[Student] Count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	stats, err := h.store.CourseStats(r.Context())
	if err != nil {
		applog.Error("[Student] Course stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	if stats == nil {
		stats = []student.CourseStat{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalStudents: total,
		Courses:       stats,
	})
}
