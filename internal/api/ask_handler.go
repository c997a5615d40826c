package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"hybridrag/internal/domain/router"
	applog "hybridrag/internal/platform/log"
)

// QueryRouter 问答路由端口（便于测试替换）
type QueryRouter interface {
	Route(ctx context.Context, question string) (*router.RouteResult, error)
}

// AskHandler 问答入口处理器
type AskHandler struct {
	router QueryRouter
}

// askResponse /ask 的扁平响应体
type askResponse struct {
	Source string `json:"source"`
	Answer string `json:"answer"`
	Cached bool   `json:"cached"`
}

func NewAskHandler(r QueryRouter) *AskHandler {
	return &AskHandler{router: r}
}

// Ask GET /ask?question=...
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeError(w, http.StatusBadRequest, "question parameter is required")
		return
	}

	result, err := h.router.Route(r.Context(), question)
	if err != nil {
		applog.Error("[Ask] Route failed", "question", question, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(&askResponse{
		Source: result.Source,
		Answer: result.Answer,
		Cached: result.FromCache,
	})
}
