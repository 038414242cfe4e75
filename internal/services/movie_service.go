package services

import (
	"strings"
	"time"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/internal/repositories"
)

// ValidationError は入力不備によるエラーです。ハンドラーで400に変換されます。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DefaultListLimit は limit 未指定・不正時のデフォルト件数です。
const DefaultListLimit = 10

// ソート対象として許可するフィールドとカラム名の対応表。
// ここに無いフィールドは title 昇順にフォールバックします。
var validSortFields = map[string]string{
	"title":        "title",
	"release_year": "release_year",
	"rating":       "rating",
	"created_at":   "created_at",
	"createdAt":    "created_at", // 旧クライアントが送るキャメルケースも受ける
	"status":       "status",
}

// MovieService は映画関連のビジネスロジックを扱います。
type MovieService struct {
	movieRepo *repositories.MovieRepository
}

// NewMovieService は新しいMovieServiceを作成します。
func NewMovieService(movieRepo *repositories.MovieRepository) *MovieService {
	return &MovieService{movieRepo: movieRepo}
}

// ResolveSort は "<field>_<direction>" 形式のソート指定をカラム名と方向に解決します。
// "_desc" サフィックスのみ降順、それ以外はすべて昇順です。
// 未知のフィールドはエラーにせず title 昇順に倒します。
func ResolveSort(sortBy string) (field string, desc bool) {
	switch {
	case strings.HasSuffix(sortBy, "_desc"):
		field = strings.TrimSuffix(sortBy, "_desc")
		desc = true
	case strings.HasSuffix(sortBy, "_asc"):
		field = strings.TrimSuffix(sortBy, "_asc")
	default:
		field = sortBy
	}

	column, ok := validSortFields[field]
	if !ok {
		return "title", false
	}
	return column, desc
}

// NormalizeListQuery はクライアント入力を検証済みの一覧取得条件へ正規化します。
func NormalizeListQuery(offset, limit int, search, sortBy string) models.MovieListQuery {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	field, desc := ResolveSort(sortBy)

	return models.MovieListQuery{
		Offset:    offset,
		Limit:     limit,
		Search:    strings.TrimSpace(search),
		SortField: field,
		SortDesc:  desc,
	}
}

// ListMovies は呼び出しユーザーの映画一覧を1ページ分と総件数で返します。
func (s *MovieService) ListMovies(userID, offset, limit int, search, sortBy string) (*models.MovieListResult, error) {
	q := NormalizeListQuery(offset, limit, search, sortBy)
	return s.movieRepo.List(userID, q)
}

// validateMovie は保存直前の映画レコードの整合性を検証します。
// 登録・更新の両方で同じ不変条件を適用します。
func validateMovie(m *models.Movie) error {
	if strings.TrimSpace(m.Title) == "" || strings.TrimSpace(m.Genre) == "" || m.ReleaseYear == 0 || m.Status == "" {
		return &ValidationError{Message: "Title, genre, release year, and status are required!"}
	}
	if !models.IsValidStatus(m.Status) {
		return &ValidationError{Message: "Invalid status"}
	}
	// 映画の商業公開は1888年以降。未来の年は受け付けない
	if m.ReleaseYear < 1888 || m.ReleaseYear > time.Now().Year() {
		return &ValidationError{Message: "Release year must be a valid calendar year"}
	}
	if m.Status == models.StatusWatched || m.Status == models.StatusWatching {
		if m.Rating == nil {
			return &ValidationError{Message: "Rating is required for watched and watching movies!"}
		}
	}
	if m.Rating != nil && (*m.Rating < 0 || *m.Rating > 5) {
		return &ValidationError{Message: "Rating must be between 0 and 5"}
	}
	return nil
}

// CreateMovie は新しい映画を呼び出しユーザーの所有物として登録します。
// "Plan to Watch" の場合、クライアントが評価を送ってきてもNULLに強制します。
func (s *MovieService) CreateMovie(userID int, req models.MovieCreateRequest) (*models.Movie, error) {
	movie := &models.Movie{
		UserID:      userID,
		Title:       req.Title,
		Genre:       req.Genre,
		ReleaseYear: req.ReleaseYear,
		Rating:      req.Rating,
		Status:      req.Status,
	}
	if movie.Status == models.StatusPlanToWatch {
		movie.Rating = nil
	}

	if err := validateMovie(movie); err != nil {
		return nil, err
	}

	return s.movieRepo.Create(movie)
}

// UpdateMovie は所有チェック付きで映画を部分更新します。
// 他人の映画と存在しない映画は区別せず NotFound になります。
// パッチ適用後のレコードにも登録時と同じ不変条件を適用します。
func (s *MovieService) UpdateMovie(userID, id int, req models.MovieUpdateRequest) (*models.Movie, error) {
	movie, err := s.movieRepo.FindByID(id, userID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		movie.Title = *req.Title
	}
	if req.Genre != nil {
		movie.Genre = *req.Genre
	}
	if req.ReleaseYear != nil {
		movie.ReleaseYear = *req.ReleaseYear
	}
	if req.Rating != nil {
		movie.Rating = req.Rating
	}
	if req.Status != nil {
		movie.Status = *req.Status
	}
	if movie.Status == models.StatusPlanToWatch {
		movie.Rating = nil
	}

	if err := validateMovie(movie); err != nil {
		return nil, err
	}

	return s.movieRepo.Update(id, userID, movie)
}

// DeleteMovie は所有チェック付きで映画を削除します。
func (s *MovieService) DeleteMovie(userID, id int) error {
	return s.movieRepo.Delete(id, userID)
}
