package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aishort/middleware"
	"github.com/cppla/aishort/models"
	"github.com/cppla/aishort/services"
	"github.com/cppla/aishort/utils"
)

// URLController exposes shortening, resolution and management of short URLs.
type URLController struct {
	shortener *services.Shortener
	baseURL   string
	isAdmin   func(username string) bool
	logger    *zap.Logger
}

// NewURLController creates a new URLController instance.
// baseURL prefixes aliases in the short_url field of responses.
func NewURLController(shortener *services.Shortener, baseURL string, isAdmin func(string) bool, logger *zap.Logger) *URLController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &URLController{shortener: shortener, baseURL: baseURL, isAdmin: isAdmin, logger: logger}
}

type urlView struct {
	models.URLRecord
	ShortURL string `json:"short_url"`
}

func (u *URLController) view(rec *models.URLRecord) urlView {
	return urlView{URLRecord: *rec, ShortURL: u.baseURL + "/" + rec.Alias}
}

// CreateURL shortens a URL. Authenticated callers become the owner of the record.
func (u *URLController) CreateURL(ctx *gin.Context) {
	var req struct {
		URL   string `json:"url" binding:"required"`
		Alias string `json:"alias"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	var owner *string
	if id := middleware.UserID(ctx); id != "" {
		owner = &id
	}

	rec, err := u.shortener.Submit(ctx.Request.Context(), services.SubmitRequest{
		URL:     req.URL,
		Alias:   req.Alias,
		OwnerID: owner,
	})
	if err != nil {
		u.fail(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"url": u.view(rec)})
}

// GetURL returns the target of an active alias without redirecting.
func (u *URLController) GetURL(ctx *gin.Context) {
	rec, err := u.shortener.Resolve(ctx.Request.Context(), ctx.Param("alias"))
	if err != nil {
		u.fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"alias": rec.Alias, "target_url": rec.TargetURL})
}

// Redirect sends the client to the target of an active alias.
// 307 keeps the method and body of the original request.
func (u *URLController) Redirect(ctx *gin.Context) {
	rec, err := u.shortener.Resolve(ctx.Request.Context(), ctx.Param("alias"))
	if err != nil {
		u.fail(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "private, max-age=0")
	ctx.Redirect(http.StatusTemporaryRedirect, rec.TargetURL)
}

// DeleteURL soft-deletes an alias owned by the caller. Admins may delete any alias.
func (u *URLController) DeleteURL(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	actor := services.Actor{OwnerID: userID, Admin: u.isAdmin(middleware.Username(ctx))}

	rec, err := u.shortener.Delete(ctx.Request.Context(), ctx.Param("alias"), actor)
	if err != nil {
		u.fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"url": u.view(rec)})
}

// PurgeURL removes an alias outright so it can be taken again. Admin only.
func (u *URLController) PurgeURL(ctx *gin.Context) {
	rec, err := u.shortener.Purge(ctx.Request.Context(), ctx.Param("alias"))
	if err != nil {
		u.fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"url": u.view(rec)})
}

// ListMyURLs pages through the caller's records, newest first.
func (u *URLController) ListMyURLs(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	res, err := u.shortener.ListByOwner(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		u.fail(ctx, err)
		return
	}
	items := make([]urlView, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, u.view(&res.Items[i]))
	}
	utils.Success(ctx, gin.H{
		"items":     items,
		"page":      res.Page,
		"page_size": res.PageSize,
		"total":     res.Total,
	})
}

// fail maps service errors onto HTTP status and business codes.
func (u *URLController) fail(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		code := 40002
		if verr.Field == "alias" {
			code = 40003
		}
		utils.Error(ctx, http.StatusBadRequest, code, verr.Error())
	case errors.Is(err, services.ErrRecordNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "short url not found")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only delete your own short urls")
	case errors.Is(err, services.ErrAliasConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "alias already taken")
	case errors.Is(err, services.ErrAllocationExhausted):
		u.logger.Error("alias allocation exhausted", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "could not allocate a unique alias, please retry")
	case errors.Is(err, services.ErrStoreUnavailable):
		u.logger.Error("record store unavailable", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "storage unavailable")
	default:
		u.logger.Error("unexpected error", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
