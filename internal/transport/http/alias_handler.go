package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/repository"
)

// AliasHandler 把别名仓库的操作暴露给本地 UI
type AliasHandler struct {
	repo *repository.AliasRepository
	log  *zap.Logger
}

// NewAliasHandler 创建别名处理器
func NewAliasHandler(repo *repository.AliasRepository, log *zap.Logger) *AliasHandler {
	return &AliasHandler{
		repo: repo,
		log:  logger.OrNop(log).Named("alias_handler"),
	}
}

type fetchRequest struct {
	Reset bool `json:"reset"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type createAliasRequest struct {
	Prefix     string        `json:"prefix"`
	Suffix     domain.Suffix `json:"suffix"`
	MailboxIDs []int64       `json:"mailbox_ids"`
	Name       *string       `json:"name"`
	Note       *string       `json:"note"`
}

type randomAliasRequest struct {
	Mode     string  `json:"mode" binding:"omitempty,oneof=uuid word"`
	Note     *string `json:"note"`
	Hostname string  `json:"hostname"`
}

type updateAliasRequest struct {
	Name       *string `json:"name"`
	Note       *string `json:"note"`
	MailboxIDs []int64 `json:"mailbox_ids"`
	Pinned     *bool   `json:"pinned"`
}

type toggleResponse struct {
	ID      int64 `json:"id"`
	Enabled bool  `json:"enabled"`
}

// snapshot 返回当前列表状态
func (h *AliasHandler) snapshot(c *gin.Context) {
	Success(c, h.repo.Snapshot())
}

// fetch 加载下一页，reset 为 true 时从第一页重新加载
//
// 已有请求在途时直接返回当前状态，不会发起新的请求。
func (h *AliasHandler) fetch(c *gin.Context) {
	var req fetchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	if err := h.repo.FetchPage(c.Request.Context(), req.Reset); err != nil {
		h.respondError(c, "fetch aliases", err)
		return
	}
	Success(c, h.repo.Snapshot())
}

// search 以新的搜索词从第一页重新加载，空搜索词表示全部别名
func (h *AliasHandler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.repo.Search(c.Request.Context(), req.Query); err != nil {
		h.respondError(c, "search aliases", err)
		return
	}
	Success(c, h.repo.Snapshot())
}

// create 创建自定义别名
func (h *AliasHandler) create(c *gin.Context) {
	var req createAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.repo.Create(c.Request.Context(), domain.AliasCreationRequest{
		Prefix:     req.Prefix,
		Suffix:     req.Suffix,
		MailboxIDs: req.MailboxIDs,
		Name:       req.Name,
		Note:       req.Note,
	})
	if err != nil {
		h.respondError(c, "create alias", err)
		return
	}
	Created(c, alias)
}

// createRandom 创建随机别名
func (h *AliasHandler) createRandom(c *gin.Context) {
	var req randomAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.repo.CreateRandom(c.Request.Context(), domain.RandomAliasMode(req.Mode), req.Note, req.Hostname)
	if err != nil {
		h.respondError(c, "create random alias", err)
		return
	}
	Created(c, alias)
}

// update 部分更新别名，只发送请求中出现的字段
func (h *AliasHandler) update(c *gin.Context) {
	id, ok := aliasID(c)
	if !ok {
		return
	}

	var req updateAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.repo.Update(c.Request.Context(), id, domain.AliasUpdate{
		Name:       req.Name,
		Note:       req.Note,
		MailboxIDs: req.MailboxIDs,
		Pinned:     req.Pinned,
	})
	if err != nil {
		h.respondError(c, "update alias", err)
		return
	}
	Success(c, alias)
}

// toggle 切换启用状态，返回服务端确认后的值
func (h *AliasHandler) toggle(c *gin.Context) {
	id, ok := aliasID(c)
	if !ok {
		return
	}

	enabled, err := h.repo.Toggle(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "toggle alias", err)
		return
	}
	Success(c, toggleResponse{ID: id, Enabled: enabled})
}

// delete 删除别名
func (h *AliasHandler) delete(c *gin.Context) {
	id, ok := aliasID(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, "delete alias", err)
		return
	}
	SuccessWithMsg(c, "删除成功", gin.H{"id": id})
}

// activities 分页获取别名的收发记录
func (h *AliasHandler) activities(c *gin.Context) {
	id, ok := aliasID(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	activities, err := h.repo.Activities(c.Request.Context(), id, page)
	if err != nil {
		h.respondError(c, "list activities", err)
		return
	}
	Success(c, activities)
}

// cached 离线读取本地缓存的一页
func (h *AliasHandler) cached(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	aliases, err := h.repo.CachedPage(page, c.Query("query"))
	if err != nil {
		h.respondError(c, "read cached aliases", err)
		return
	}
	Success(c, aliases)
}

// creationContext 返回创建页需要的后缀选项和邮箱列表
func (h *AliasHandler) creationContext(c *gin.Context) {
	result, err := h.repo.LoadCreationContext(c.Request.Context(), c.Query("hostname"))
	if err != nil {
		h.respondError(c, "load creation context", err)
		return
	}
	Success(c, result)
}

func (h *AliasHandler) respondError(c *gin.Context, operation string, err error) {
	status, msg := GetErrorMessage(err)
	if status >= 500 {
		h.log.Error("operation failed", zap.String("operation", operation), zap.Error(err))
	} else {
		h.log.Debug("operation rejected", zap.String("operation", operation), zap.Error(err))
	}
	Error(c, status, msg)
}

// aliasID 解析路径中的别名 ID，失败时已写入响应
func aliasID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, MsgInvalidAliasID)
		return 0, false
	}
	return id, true
}

// pageQuery 解析 page 查询参数，默认 0
func pageQuery(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		BadRequest(c, MsgInvalidPage)
		return 0, false
	}
	return page, true
}
