package handlers

import (
	"github.com/gin-gonic/gin"
)

func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body")

		return false
	}

	return true
}
