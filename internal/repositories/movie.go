package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"movie-watchlist/backend/internal/models"
)

// ErrMovieNotFound は対象の映画が（呼び出しユーザーの所有物として）存在しない場合のエラーです。
var ErrMovieNotFound = errors.New("movie not found")

// MovieRepository は映画テーブルの操作を行うための構造体です。
// すべてのクエリは user_id で所有者スコープをかけます。
type MovieRepository struct {
	DB *sql.DB
}

// NewMovieRepository は新しいMovieRepositoryインスタンスを作成します。
func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{DB: db}
}

// Create は新しい映画をデータベースに挿入します。
func (r *MovieRepository) Create(m *models.Movie) (*models.Movie, error) {
	query := "INSERT INTO movies (user_id, title, genre, release_year, rating, status) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := r.DB.Exec(query, m.UserID, m.Title, m.Genre, m.ReleaseYear, m.Rating, m.Status)
	if err != nil {
		log.Printf("Failed to insert movie: %v", err)
		return nil, fmt.Errorf("could not insert movie: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}

	return r.FindByID(int(id), m.UserID)
}

// FindByID は指定IDの映画を所有者スコープ付きで取得します。
// 他人の映画は存在しないものとして扱います（存在の漏えい防止）。
func (r *MovieRepository) FindByID(id, userID int) (*models.Movie, error) {
	query := "SELECT id, user_id, title, genre, release_year, rating, status, created_at, updated_at FROM movies WHERE id = ? AND user_id = ?"

	var m models.Movie
	err := r.DB.QueryRow(query, id, userID).Scan(
		&m.ID, &m.UserID, &m.Title, &m.Genre, &m.ReleaseYear, &m.Rating, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		log.Printf("Failed to query movie by ID: %v", err)
		return nil, fmt.Errorf("could not query movie: %w", err)
	}

	return &m, nil
}

// List は所有者スコープ内で検索・ソート・ページングを適用した1ページ分と総件数を返します。
// タイトル検索はMySQLのデフォルト照合順序によりケースインセンシティブです。
// 同値の並びが呼び出しごとに入れ替わらないよう、常に id ASC をタイブレークに付けます。
func (r *MovieRepository) List(userID int, q models.MovieListQuery) (*models.MovieListResult, error) {
	where := "WHERE user_id = ?"
	args := []interface{}{userID}
	if q.Search != "" {
		where += " AND title LIKE ?"
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := r.DB.QueryRow("SELECT COUNT(*) FROM movies "+where, args...).Scan(&total); err != nil {
		log.Printf("Failed to count movies: %v", err)
		return nil, fmt.Errorf("could not count movies: %w", err)
	}

	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}
	// q.SortField はサービス層でホワイトリスト検証済みのカラム名のみが入る
	query := fmt.Sprintf(
		"SELECT id, user_id, title, genre, release_year, rating, status, created_at, updated_at FROM movies %s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		where, q.SortField, direction,
	)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		log.Printf("Failed to query movies: %v", err)
		return nil, fmt.Errorf("could not query movies: %w", err)
	}
	defer rows.Close()

	movies := []*models.Movie{}
	for rows.Next() {
		var m models.Movie
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Title, &m.Genre, &m.ReleaseYear, &m.Rating, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			log.Printf("Failed to scan movie: %v", err)
			return nil, fmt.Errorf("could not scan movie: %w", err)
		}
		movies = append(movies, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movies: %w", err)
	}

	return &models.MovieListResult{Movies: movies, TotalMovies: total}, nil
}

// Update は所有者スコープ付きで映画を更新します。
// WHERE id AND user_id の1文で照合するため、同一ユーザーの同時更新・削除は
// ストレージ側の行アトミック性で直列化されます（負けた側は0行→NotFound）。
func (r *MovieRepository) Update(id, userID int, m *models.Movie) (*models.Movie, error) {
	query := "UPDATE movies SET title = ?, genre = ?, release_year = ?, rating = ?, status = ? WHERE id = ? AND user_id = ?"
	if _, err := r.DB.Exec(query, m.Title, m.Genre, m.ReleaseYear, m.Rating, m.Status, id, userID); err != nil {
		log.Printf("Failed to update movie: %v", err)
		return nil, fmt.Errorf("could not update movie: %w", err)
	}

	// 更新対象が競合で消えていた場合は再取得が ErrMovieNotFound になる
	return r.FindByID(id, userID)
}

// Delete は所有者スコープ付きで映画を削除します（ハードデリート）。
func (r *MovieRepository) Delete(id, userID int) error {
	result, err := r.DB.Exec("DELETE FROM movies WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		log.Printf("Failed to delete movie: %v", err)
		return fmt.Errorf("could not delete movie: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMovieNotFound
	}

	return nil
}
