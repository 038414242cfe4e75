// Package routesはroutingを行います。
package routes

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"movie-watchlist/backend/internal/handlers"
	"movie-watchlist/backend/internal/repositories"
	"movie-watchlist/backend/internal/services"
)

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
// Mailerは注入式にして、テストからフェイク実装を渡せるようにしています。
func SetupRouter(db *sql.DB, mailer services.Mailer) *gin.Engine {
	r := gin.Default()

	// CORS対策
	config := cors.DefaultConfig()
	allowedOrigins := []string{"http://localhost:5173"}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}
	config.AllowOrigins = allowedOrigins
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = true
	r.Use(cors.New(config))

	// リポジトリ
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewMySQLResetTokenRepo(db)
	movieRepo := repositories.NewMovieRepository(db)

	// サービス
	authService := services.NewAuthService(userRepo, resetRepo, mailer)
	movieService := services.NewMovieService(movieRepo)
	jwtService := services.NewJWTService()

	// ハンドラー
	authHandler := handlers.NewAuthHandler(authService, jwtService)
	movieHandler := handlers.NewMovieHandler(movieService)

	// ルーティング
	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database connection failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Database connection is healthy"})
	})
	r.POST("/signup", authHandler.SignupHandler)
	r.POST("/login", authHandler.LoginHandler)
	r.POST("/forgot-password", authHandler.ForgotPasswordHandler)
	r.POST("/reset-password/:token", authHandler.ResetPasswordHandler)

	authorized := r.Group("/")
	authorized.Use(AuthMiddleware(jwtService))
	{
		authorized.GET("/profile", authHandler.ProfileHandler)
		authorized.GET("/movies", movieHandler.ListMoviesHandler)
		authorized.POST("/movies", movieHandler.CreateMovieHandler)
		authorized.PUT("/movies/:id", movieHandler.UpdateMovieHandler)
		authorized.DELETE("/movies/:id", movieHandler.DeleteMovieHandler)
	}

	return r
}
