package middleware

import (
	"net/http"
	"time"

	"agentic-rag-platform/internal/auth"
	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type AuthMiddleware struct {
	config *config.Config
	rdb    *redis.Client
}

func NewAuthMiddleware(cfg *config.Config, rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		rdb:    rdb,
	}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		// Try to get access token from Authorization header
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			tokenString = utils.ExtractTokenFromHeader(authHeader)
		}

		// If no header token, try access_token cookie
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "unauthorized",
				"message":    "Authentication token is required",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(tokenString, a.rdb)
		if err != nil {
			// Try to auto-refresh using refresh token
			if refreshToken, cookieErr := c.Cookie("refresh_token"); cookieErr == nil && refreshToken != "" {
				refreshClaims, refreshErr := auth.ValidateRefreshToken(refreshToken, a.rdb)
				if refreshErr == nil {
					// Valid refresh token found, rotate the pair
					if revokeErr := auth.RevokeToken(refreshClaims.ID, true, a.rdb); revokeErr != nil {
						_ = revokeErr
					}

					tokenPair, issueErr := auth.IssueTokenPair(refreshClaims.UserID, refreshClaims.Role, a.rdb)
					if issueErr == nil {
						secure := a.config.GinMode == "release"
						c.SetSameSite(http.SameSiteLaxMode)
						c.SetCookie(
							"access_token",
							tokenPair.AccessToken,
							int(1*time.Hour.Seconds()),
							"/",
							"",
							secure,
							true,
						)
						c.SetCookie(
							"refresh_token",
							tokenPair.RefreshToken,
							int(7*24*time.Hour.Seconds()),
							"/",
							"",
							secure,
							true,
						)

						freshClaims, valErr := auth.ValidateAccessToken(tokenPair.AccessToken, a.rdb)
						if valErr == nil {
							claims = freshClaims
						}
					}
				}
			}

			// If still no valid claims after refresh attempt
			if claims == nil {
				var errorCode string
				var errorMessage string

				refreshToken, refreshErr := c.Cookie("refresh_token")
				if refreshErr != nil || refreshToken == "" {
					errorCode = "session_expired"
					errorMessage = "Your session has expired. Please log in again."
				} else {
					if _, validationErr := auth.ValidateRefreshToken(refreshToken, a.rdb); validationErr != nil {
						errorCode = "refresh_token_expired"
						errorMessage = "Your session has expired. Please log in again."
					} else {
						errorCode = "token_refresh_failed"
						errorMessage = "Failed to refresh session. Please log in again."
					}
				}

				c.JSON(http.StatusUnauthorized, gin.H{
					"error_code": errorCode,
					"message":    errorMessage,
					"details":    gin.H{"error": err.Error()},
				})
				c.Abort()
				return
			}
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("claims", claims)

		c.Next()
	})
}

// Helper function to get user ID from context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// Helper function to get role from context
func GetRole(c *gin.Context) string {
	if role, exists := c.Get("role"); exists {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}
