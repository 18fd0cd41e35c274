// Package app contains the router and every endpoint available
package app

import (
	"time"

	"bitwise74/account-api/app/root"
	"bitwise74/account-api/app/user"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     d.Config.CORS,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS", "HEAD"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString(middleware.KeyUserID); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
		middleware.ErrorHandler(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	g := d.Guards
	access := g.RequireAccessToken()
	refresh := g.RequireRefreshToken()
	verified := g.RequireVerifiedUser()
	profiles := persist.NewMemoryStore(time.Minute)

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat		-> Used to check if the server and its store are alive
		main.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/validate		-> Validates an access token
		main.GET("/validate", access, root.Validate)
	}

	u := main.Group("/users", middleware.BodySizeLimiter(d.Config.BodyLimit), middleware.JSONBody())
	{
		// POST /api/users/login		-> Checks credentials and returns a token pair
		u.POST("/login", g.Validate(user.LoginSchema(d)), func(c *gin.Context) { user.UserLogin(c, d) })

		// POST /api/users/register		-> Creates an unverified account and returns a token pair
		u.POST("/register", g.Validate(user.RegisterSchema(d)), func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/logout		-> Ends the session of refresh_token
		u.POST("/logout", access, refresh, func(c *gin.Context) { user.UserLogout(c, d) })

		// POST /api/users/refresh-token	-> Rotates a session
		u.POST("/refresh-token", refresh, func(c *gin.Context) { user.UserRefreshToken(c, d) })

		// POST /api/users/verify-email	-> Consumes an email verify token
		u.POST("/verify-email", g.RequireEmailVerifyToken(), func(c *gin.Context) { user.UserVerifyEmail(c, d) })

		// POST /api/users/resend-verify-email	-> Issues a new email verify token
		u.POST("/resend-verify-email", access, func(c *gin.Context) { user.UserResendVerifyEmail(c, d) })

		// POST /api/users/forgot-password	-> Issues a forgot password token
		u.POST("/forgot-password", g.Validate(user.ForgotPasswordSchema(d)), func(c *gin.Context) { user.UserForgotPassword(c, d) })

		// POST /api/users/verify-forgot-password	-> Checks a forgot password token
		u.POST("/verify-forgot-password", g.RequireForgotPasswordToken(), user.UserVerifyForgotPassword)

		// POST /api/users/reset-password	-> Sets a new password using a forgot password token
		u.POST("/reset-password", g.Validate(user.ResetPasswordSchema(d)), func(c *gin.Context) { user.UserResetPassword(c, d) })

		// GET /api/users/me			-> Returns the caller's account
		u.GET("/me", access, func(c *gin.Context) { user.UserFetch(c, d) })

		// PATCH /api/users/me			-> Updates the caller's profile
		u.PATCH("/me",
			access,
			verified,
			middleware.FilterBody(user.UpdatableFields...),
			g.Validate(user.UpdateMeSchema(d)),
			func(c *gin.Context) { user.UserUpdate(c, d) },
		)

		// POST /api/users/follow		-> Follows followed_user_id
		u.POST("/follow", access, verified, g.Validate(user.FollowSchema(d)), func(c *gin.Context) { user.UserFollow(c, d) })

		// POST /api/users/unfollow		-> Unfollows followed_user_id
		u.POST("/unfollow", access, verified, g.Validate(user.FollowSchema(d)), func(c *gin.Context) { user.UserUnfollow(c, d) })

		// PUT /api/users/change-password	-> Changes the password after checking the old one
		u.PUT("/change-password", access, verified, g.Validate(user.ChangePasswordSchema(d)), func(c *gin.Context) { user.UserChangePassword(c, d) })
	}

	p := main.Group("/profiles")
	{
		// GET /api/profiles/:username	-> Returns someone's public profile
		p.GET("/:username",
			g.Validate(user.ProfileSchema()),
			cache.CacheByRequestURI(profiles, d.Config.ProfileCacheTTL),
			func(c *gin.Context) { user.UserProfile(c, d) },
		)
	}

	return router
}
