package controllers

import (
	"errors"
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-gonic/gin"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string                `json:"error"`
	Kind    string                `json:"kind"`
	Fields  []services.FieldError `json:"fields,omitempty"`
	Actions []string              `json:"actions"`
}

func respondError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)

	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		ctx.JSON(http.StatusInternalServerError, errorBody{
			Error:   "Something went wrong, please try again",
			Kind:    "internal",
			Actions: []string{models.ActionRetry},
		})
		return
	}
	actions := svcErr.Actions
	if actions == nil {
		actions = []string{}
	}
	ctx.JSON(svcErr.StatusCode, errorBody{
		Error:   svcErr.Message,
		Kind:    string(svcErr.Kind),
		Fields:  svcErr.Fields,
		Actions: actions,
	})
}

func badRequest(ctx *gin.Context, err error) {
	respondError(ctx, services.NewValidationError("Invalid request: "+err.Error()))
}
