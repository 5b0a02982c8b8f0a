package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// clampPage normalises 1-based pagination input into limit and offset.
func clampPage(page, pageSize int) (int, int) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
