package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts a single route, for any HTTP method, at
// /webhooks/:service, matching §6's "/webhooks/{service}" surface.
func RegisterRoutes(router gin.IRouter, in *Ingress) {
	router.Any("/webhooks/:service", func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		resp, err := in.Handle(c.Request.Context(), c.Param("service"), c.Request)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "request_id": requestID})
			return
		}
		if text, isText := resp.Body.(plainText); isText {
			c.String(resp.Status, "%s", string(text))
			return
		}
		if resp.Body == nil {
			c.Status(resp.Status)
			return
		}
		c.JSON(resp.Status, resp.Body)
	})
}
