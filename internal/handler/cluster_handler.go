// Package handler 包含了人工审核 API 的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"corpus-dedup/internal/middleware"
	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/log"

	"github.com/gin-gonic/gin"
)

// ClusterHandler 负责处理聚类查询、合并与驳回的请求。
type ClusterHandler struct {
	reviewService service.ReviewService
	mergeService  service.MergeService
}

// NewClusterHandler 创建一个新的 ClusterHandler 实例。
func NewClusterHandler(reviewService service.ReviewService, mergeService service.MergeService) *ClusterHandler {
	return &ClusterHandler{
		reviewService: reviewService,
		mergeService:  mergeService,
	}
}

// MergeRequest 定义了合并 API 的请求体结构。
type MergeRequest struct {
	KeepID    uint   `json:"keepId" binding:"required"`
	RemoveIDs []uint `json:"removeIds" binding:"required,min=1"`
	Notes     string `json:"notes"`
}

// RejectRequest 定义了驳回 API 的请求体结构。
type RejectRequest struct {
	Notes string `json:"notes"`
}

// AutoMergeRequest 定义了自动合并 API 的请求体结构。
type AutoMergeRequest struct {
	Threshold *float64 `json:"threshold" binding:"required"`
}

// statusOf 将服务层的错误分类映射为 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrJobRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": nil})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func clusterIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的聚类 id", "data": nil})
		return 0, false
	}
	return uint(id), true
}

// reviewerNotes 在备注前加上操作人，写入聚类的审计记录。
func reviewerNotes(c *gin.Context, notes string) string {
	reviewer := c.GetString(middleware.ReviewerKey)
	if reviewer == "" {
		return notes
	}
	if notes == "" {
		return fmt.Sprintf("[%s]", reviewer)
	}
	return fmt.Sprintf("[%s] %s", reviewer, notes)
}

// ListClusters 处理按审核状态列出聚类的请求。
func (h *ClusterHandler) ListClusters(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 limit 参数", "data": nil})
			return
		}
		limit = n
	}
	clusters, err := h.reviewService.ListClusters(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		log.Error("ListClusters: failed", err)
		fail(c, err)
		return
	}
	ok(c, clusters)
}

// GetStats 返回各审核状态的聚类数量。
func (h *ClusterHandler) GetStats(c *gin.Context) {
	stats, err := h.reviewService.Stats(c.Request.Context())
	if err != nil {
		log.Error("GetStats: failed", err)
		fail(c, err)
		return
	}
	ok(c, stats)
}

// GetCluster 返回聚类详情，包括成员文档及其标签数。
func (h *ClusterHandler) GetCluster(c *gin.Context) {
	id, valid := clusterIDParam(c)
	if !valid {
		return
	}
	info, err := h.reviewService.GetClusterInfo(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, info)
}

// MergeCluster 处理人工合并请求。
func (h *ClusterHandler) MergeCluster(c *gin.Context) {
	id, valid := clusterIDParam(c)
	if !valid {
		return
	}
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("MergeCluster: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	result, err := h.mergeService.MergeCluster(c.Request.Context(), id, req.KeepID, req.RemoveIDs, reviewerNotes(c, req.Notes))
	if err != nil {
		log.Error("MergeCluster: failed", err)
		fail(c, err)
		return
	}
	log.Infof("Reviewer '%s' merged cluster %d into fingerprint %d", c.GetString(middleware.ReviewerKey), id, req.KeepID)
	ok(c, result)
}

// RejectCluster 将聚类标记为非重复。
func (h *ClusterHandler) RejectCluster(c *gin.Context) {
	id, valid := clusterIDParam(c)
	if !valid {
		return
	}
	var req RejectRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
			return
		}
	}
	if err := h.reviewService.RejectCluster(c.Request.Context(), id, reviewerNotes(c, req.Notes)); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// AutoMerge 合并所有置信度不低于阈值的 pending 聚类。
func (h *ClusterHandler) AutoMerge(c *gin.Context) {
	var req AutoMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	summary, err := h.mergeService.AutoMergeHighConfidence(c.Request.Context(), *req.Threshold)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}
