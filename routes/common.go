package routes

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/middleware"

	"github.com/gin-gonic/gin"
)

// userObjectID returns the authenticated user's ID as an ObjectID.
func userObjectID(c *gin.Context) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(middleware.GetUserID(c))
}
