package httpapi

import (
	"github.com/gin-gonic/gin"

	"collections-dialer/internal/rbac"
)

// Register mounts the desk API on an authenticated group.
func Register(v1 *gin.RouterGroup, h Handlers) {
	v1.GET("/me", h.Me)

	desk := v1.Group("")
	desk.Use(rbac.RequireDesk(rbac.RoleAgent, rbac.RoleSupervisor))

	callsGroup := desk.Group("/calls")
	{
		callsGroup.POST("/outgoing", h.StartOutgoing)
		callsGroup.POST("/incoming", h.ReceiveIncoming)
		callsGroup.POST("/accept", h.Accept())
		callsGroup.POST("/reject", h.Reject())
		callsGroup.POST("/answered", h.MarkAnswered())
		callsGroup.POST("/ended", h.MarkEnded())
		callsGroup.POST("/fail", h.Fail())
		callsGroup.POST("/mute", h.SetMuted())
		callsGroup.POST("/speaker", h.SetSpeaker())
		callsGroup.POST("/foreground", h.Foreground)
		callsGroup.GET("/current", h.Current)

		callsGroup.GET("/wrapups/pending", h.PendingWrapUps)
		callsGroup.POST("/wrapups", h.SubmitWrapUp)
		callsGroup.POST("/wrapups/:session_id/abandon", h.AbandonWrapUp)
		callsGroup.GET("/wrapups/failed", h.FailedWrapUps)
		callsGroup.POST("/wrapups/retry", h.RetryWrapUps)
	}

	desk.GET("/history", h.History)

	missed := desk.Group("/missed")
	{
		missed.GET("", h.Missed)
		missed.POST("/:id/read", h.MarkMissedRead)
		missed.DELETE("", h.ClearMissed)
	}

	desk.GET("/notifications", h.Notifications)

	desk.GET("/reports/summary", h.Summary)
}
