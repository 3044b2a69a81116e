package middleware

import (
	"net/http"

	"corpus-dedup/pkg/token"

	"github.com/gin-gonic/gin"
)

// ReviewerAuthMiddleware 检查当前用户是否具有 reviewer 角色，合并与驳回都需要该角色。
// 此中间件必须在 AuthMiddleware 之后使用。
func ReviewerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ClaimsKey)
		if !exists {
			// AuthMiddleware 未能成功解析，属于服务器内部错误
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取审核人员信息", "data": nil})
			return
		}
		claims, ok := value.(*token.ReviewerClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "审核人员数据类型错误", "data": nil})
			return
		}

		if claims.Role != token.RoleReviewer {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足，需要 reviewer 角色", "data": nil})
			return
		}
		c.Next()
	}
}
