package routes

import (
	"net/http"
	"time"

	"agentic-rag-platform/internal/auth"
	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func setAuthCookies(c *gin.Context, cfg *config.Config, pair *auth.TokenPair) {
	secure := cfg.GinMode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Until(pair.AccessExp).Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(time.Until(pair.RefreshExp).Seconds()), "/", "", secure, true)
}

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, store *database.Store, rdb *redis.Client) {
	authGroup := router.Group("/auth")

	// Register endpoint. New accounts are always members; admins are seeded
	// by the migrate command.
	authGroup.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if existing, err := store.FindUserByUsername(c.Request.Context(), req.Username); err == nil && existing != nil {
			utils.RespondWithError(c, http.StatusConflict, "username_exists", "Username already exists", nil)
			return
		}

		hashedPassword, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		user := models.User{
			Username:     req.Username,
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hashedPassword,
			Role:         "member",
		}
		if err := store.CreateUser(c.Request.Context(), &user); err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		pair, err := auth.IssueTokenPair(user.ID.Hex(), user.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}
		setAuthCookies(c, cfg, pair)

		c.JSON(http.StatusCreated, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User: models.UserInfo{
				ID:       user.ID.Hex(),
				Username: user.Username,
				Name:     user.Name,
				Email:    user.Email,
				Role:     user.Role,
			},
		})
	})

	// Login endpoint
	authGroup.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		user, err := store.FindUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			if err != mongo.ErrNoDocuments {
				utils.RespondWithInternalError(c, "Failed to look up user", nil)
				return
			}
			utils.RespondWithUnauthorized(c, "Invalid username or password")
			return
		}

		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithUnauthorized(c, "Invalid username or password")
			return
		}

		pair, err := auth.IssueTokenPair(user.ID.Hex(), user.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}
		setAuthCookies(c, cfg, pair)

		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User: models.UserInfo{
				ID:       user.ID.Hex(),
				Username: user.Username,
				Name:     user.Name,
				Email:    user.Email,
				Role:     user.Role,
			},
		})
	})

	// Refresh endpoint: rotates the pair, revoking the old refresh token
	authGroup.POST("/refresh", func(c *gin.Context) {
		refreshToken, err := c.Cookie("refresh_token")
		if err != nil || refreshToken == "" {
			refreshToken = c.GetHeader("X-Refresh-Token")
		}
		if refreshToken == "" {
			utils.RespondWithUnauthorized(c, "Refresh token required")
			return
		}

		claims, err := auth.ValidateRefreshToken(refreshToken, rdb)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
			return
		}

		if err := auth.RevokeToken(claims.ID, true, rdb); err != nil {
			utils.RespondWithInternalError(c, "Failed to rotate tokens", nil)
			return
		}

		pair, err := auth.IssueTokenPair(claims.UserID, claims.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}
		setAuthCookies(c, cfg, pair)

		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"access_exp":    pair.AccessExp,
			"refresh_exp":   pair.RefreshExp,
		})
	})

	// Logout: revoke both tokens and clear cookies
	authMw := middleware.NewAuthMiddleware(cfg, rdb)
	authGroup.POST("/logout", authMw.RequireAuth(), func(c *gin.Context) {
		// ?all=true revokes every session for the user, not just this one
		if c.Query("all") == "true" {
			if err := auth.RevokeAllUserTokens(middleware.GetUserID(c), rdb); err != nil {
				utils.RespondWithInternalError(c, "Failed to revoke sessions", nil)
				return
			}
		} else {
			if claims, exists := c.Get("claims"); exists {
				if cl, ok := claims.(*auth.Claims); ok {
					if err := auth.RevokeToken(cl.ID, false, rdb); err != nil {
						utils.RespondWithInternalError(c, "Failed to revoke token", nil)
						return
					}
				}
			}
			if refreshToken, err := c.Cookie("refresh_token"); err == nil && refreshToken != "" {
				if claims, err := auth.ValidateRefreshToken(refreshToken, rdb); err == nil {
					_ = auth.RevokeToken(claims.ID, true, rdb)
				}
			}
		}

		secure := cfg.GinMode == "release"
		c.SetCookie("access_token", "", -1, "/", "", secure, true)
		c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})

	// Current user
	authGroup.GET("/me", authMw.RequireAuth(), func(c *gin.Context) {
		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}

		user, err := store.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		c.JSON(http.StatusOK, models.UserInfo{
			ID:       user.ID.Hex(),
			Username: user.Username,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
		})
	})
}
