package utils

import (
	"context"

	"github.com/mmdatafocus/beergame_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyPlayerName    = appctx.ContextKeyPlayerName
	ContextKeyGameId        = appctx.ContextKeyGameId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin = appctx.ContextKeyIsAdmin
)

func GetPlayerNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyPlayerName)
}

func GetGameIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyGameId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetPlayerNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyPlayerName, name)
}

func SetGameIdInContext(ctx context.Context, gameId string) context.Context {
	return appctx.Set(ctx, ContextKeyGameId, gameId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}
