package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
)

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context, defaultLimit int) (int, int) {
	const MaxLimit = 100

	pageInt := 1
	limitInt := defaultLimit

	if p, err := strconv.Atoi(ctx.Query("page")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.Query("limit")); err == nil && l > 0 {
		limitInt = min(l, MaxLimit)
	}
	return pageInt, limitInt
}

// bindJSON binds the body into req and records an invalid_input error on failure.
func bindJSON(ctx *gin.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		_ = ctx.Error(apperrors.InvalidInput("Invalid request: %v", err))
		return false
	}
	return true
}

// userID returns the caller set by AuthMiddleware.
func userID(ctx *gin.Context) string {
	return middleware.GetUserID(ctx)
}

func queryInt64(ctx *gin.Context, key string) int64 {
	v, err := strconv.ParseInt(ctx.Query(key), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
