// Package modelsはMovieを定義します。
package models

import "time"

// 視聴ステータスの取りうる値。
const (
	StatusWatched     = "Watched"
	StatusWatching    = "Watching"
	StatusPlanToWatch = "Plan to Watch"
)

// IsValidStatus はステータス文字列が定義済みのものか判定します。
func IsValidStatus(s string) bool {
	return s == StatusWatched || s == StatusWatching || s == StatusPlanToWatch
}

// Movie は映画レコードのデータベース構造体を表します。
// Rating は "Plan to Watch" のとき NULL になるためポインタで保持します。
type Movie struct {
	ID          int       `json:"id,omitempty"` // 主キー
	UserID      int       `json:"user_id"`      // 所有者のユーザーID
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	ReleaseYear int       `json:"release_year"`
	Rating      *int      `json:"rating"` // 0〜5。未視聴ならNULL
	Status      string    `json:"status"` // Watched | Watching | Plan to Watch
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// MovieCreateRequest は映画登録リクエストの構造体です。
type MovieCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Genre       string `json:"genre" binding:"required"`
	ReleaseYear int    `json:"release_year" binding:"required"`
	Rating      *int   `json:"rating"`
	Status      string `json:"status" binding:"required"`
}

// MovieUpdateRequest は部分更新リクエストの構造体です。
// nil のフィールドは「変更しない」を意味します。
type MovieUpdateRequest struct {
	Title       *string `json:"title"`
	Genre       *string `json:"genre"`
	ReleaseYear *int    `json:"release_year"`
	Rating      *int    `json:"rating"`
	Status      *string `json:"status"`
}

// MovieListQuery は正規化済みの一覧取得条件です。
type MovieListQuery struct {
	Offset    int
	Limit     int
	Search    string // トリム済み。空なら絞り込みなし
	SortField string // ホワイトリスト検証済みのカラム名
	SortDesc  bool
}

// MovieListResult は1ページ分の結果と総件数です。
type MovieListResult struct {
	Movies      []*Movie `json:"movies"`
	TotalMovies int      `json:"totalMovies"`
}
