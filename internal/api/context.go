package api

import (
	"context"
	"fmt"
)

type subjectContextKey struct{}

// WithSubject 注入已鉴权的 subject 到 context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFrom 从 context 提取 subject
func SubjectFrom(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	if !ok {
		return "", fmt.Errorf("subject not found in context")
	}
	return subject, nil
}
