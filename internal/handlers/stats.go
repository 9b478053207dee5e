package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerdial/signaling/internal/signaling"
)

// Stats reports relay-wide room and connection counts for monitoring.
func Stats(router *signaling.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, router.Stats())
	}
}

// RoomInfo reports one room's occupants for operator inspection. Rooms only
// exist while occupied, so unknown and empty are the same 404.
func RoomInfo(router *signaling.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, ok := router.RoomInfo(c.Param("roomId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
