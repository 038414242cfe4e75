package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/internal/repositories"
	"movie-watchlist/backend/internal/services"
)

// MovieHandler は映画関連のハンドラーを管理します。
type MovieHandler struct {
	movieService *services.MovieService
}

// NewMovieHandler は新しいMovieHandlerを作成します。
func NewMovieHandler(movieService *services.MovieService) *MovieHandler {
	return &MovieHandler{movieService: movieService}
}

// currentUserID はミドルウェアがコンテキストに設定した呼び出しユーザーのIDを取り出します。
func currentUserID(c *gin.Context) (int, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User ID not found in context"})
		return 0, false
	}
	userID, ok := userIDVal.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Invalid user ID type in context"})
		return 0, false
	}
	return userID, true
}

// ListMoviesHandler は呼び出しユーザーの映画一覧を返します。
// offset形式とpage形式の両方に対応します。page指定時はレスポンスに currentPage を含めます。
func (h *MovieHandler) ListMoviesHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultListLimit
	}

	// sort と sortBy はどちらのキーでも受ける
	sortBy := c.Query("sort")
	if sortBy == "" {
		sortBy = c.Query("sortBy")
	}
	search := c.Query("search")

	page := 0
	offset := 0
	if pageStr := c.Query("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			page = 1
		}
		offset = (page - 1) * limit
	} else {
		offset, err = strconv.Atoi(c.Query("offset"))
		if err != nil || offset < 0 {
			offset = 0
		}
	}

	result, err := h.movieService.ListMovies(userID, offset, limit, search, sortBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching movies."})
		return
	}

	if page > 0 {
		c.JSON(http.StatusOK, gin.H{"movies": result.Movies, "totalMovies": result.TotalMovies, "currentPage": page})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": result.Movies, "totalMovies": result.TotalMovies})
}

// CreateMovieHandler は新しい映画を登録します。
func (h *MovieHandler) CreateMovieHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.MovieCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title, genre, release year, and status are required!"})
		return
	}

	movie, err := h.movieService.CreateMovie(userID, req)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"message": ve.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error adding movie."})
		return
	}

	c.JSON(http.StatusCreated, movie)
}

// UpdateMovieHandler は映画を部分更新します。
func (h *MovieHandler) UpdateMovieHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid ID format"})
		return
	}

	var req models.MovieUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request payload"})
		return
	}

	movie, err := h.movieService.UpdateMovie(userID, id, req)
	if err != nil {
		if errors.Is(err, repositories.ErrMovieNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Movie not found."})
			return
		}
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"message": ve.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error updating movie."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Movie updated successfully.", "movie": movie})
}

// DeleteMovieHandler は映画を削除します。
func (h *MovieHandler) DeleteMovieHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid ID format"})
		return
	}

	if err := h.movieService.DeleteMovie(userID, id); err != nil {
		if errors.Is(err, repositories.ErrMovieNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Movie not found or already deleted."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error deleting movie."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Movie deleted successfully."})
}
