package handler

import (
	"corpus-dedup/internal/middleware"
	"corpus-dedup/pkg/token"

	"github.com/gin-gonic/gin"
)

// NewRouter 注册审核 API 的全部路由。查询只需登录，合并、驳回需要 reviewer 角色。
func NewRouter(clusters *ClusterHandler, jwtManager *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(jwtManager))
	{
		apiV1.GET("/clusters", clusters.ListClusters)
		apiV1.GET("/clusters/stats", clusters.GetStats)
		apiV1.GET("/clusters/:id", clusters.GetCluster)

		review := apiV1.Group("/")
		review.Use(middleware.ReviewerAuthMiddleware())
		{
			review.POST("/clusters/:id/merge", clusters.MergeCluster)
			review.POST("/clusters/:id/reject", clusters.RejectCluster)
			review.POST("/clusters/auto-merge", clusters.AutoMerge)
		}
	}
	return r
}
