package httpapi

import (
	"context"

	"agentmcp/internal/log"

	"github.com/go-chi/chi/v5/middleware"
)

func logError(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		log.ErrorErr(log.CatHTTP, msg, err, "req_id", reqID)
		return
	}
	log.ErrorErr(log.CatHTTP, msg, err)
}

func logErrorNoCtx(msg string, err error) {
	if err == nil {
		return
	}
	log.ErrorErr(log.CatHTTP, msg, err)
}

func logMsg(ctx context.Context, msg string, fields ...any) {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		fields = append(fields, "req_id", reqID)
	}
	log.Warn(log.CatHTTP, msg, fields...)
}
