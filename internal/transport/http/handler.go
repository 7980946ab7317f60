package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courtbook/webhook-service/internal/model"
	"github.com/courtbook/webhook-service/internal/service"
)

func RegisterHandlers(r *gin.Engine, svc *service.WebhookService) {
	v1 := r.Group("/v1")
	{
		v1.POST("/webhooks/:provider", webhookHandler(svc))
	}
}

// webhookHandler accepts a raw gateway callback, pulls out the provider's
// notification id and stores the event. Duplicates still answer 200: the
// gateway only needs to know the delivery landed. Signature verification is
// the upstream proxy's job.
func webhookHandler(svc *service.WebhookService) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := model.Provider(c.Param("provider"))
		if !provider.Valid() {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}
		adapter, ok := svc.Adapter(provider)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
			return
		}

		externalID, err := adapter.NotificationID(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
			return
		}

		if _, err := svc.StoreEvent(c, provider, "payment", externalID, string(body)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	}
}
