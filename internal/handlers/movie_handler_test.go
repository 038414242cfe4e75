package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/testutil"
)

func doAuthedJSON(t *testing.T, r http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func listMovies(t *testing.T, r http.Handler, token, query string) (int, map[string]json.RawMessage, []models.Movie) {
	t.Helper()
	w := doAuthedJSON(t, r, "GET", "/movies?"+query, token, nil)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))

	var movies []models.Movie
	if rawMovies, ok := raw["movies"]; ok {
		require.NoError(t, json.Unmarshal(rawMovies, &movies))
	}
	return w.Code, raw, movies
}

func TestCreateMovie_Success(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := doAuthedJSON(t, r, "POST", "/movies", token, map[string]interface{}{
		"title":        "Dune",
		"genre":        "Sci-Fi",
		"release_year": 2021,
		"rating":       5,
		"status":       "Watched",
	})

	assert.Equal(t, http.StatusCreated, w.Code, "Expected HTTP Status Code 201 Created: %s", w.Body.String())
	var created models.Movie
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Dune", created.Title)
	assert.Equal(t, "Sci-Fi", created.Genre)
	assert.Equal(t, 2021, created.ReleaseYear)
	require.NotNil(t, created.Rating)
	assert.Equal(t, 5, *created.Rating)
	assert.Equal(t, models.StatusWatched, created.Status)
	assert.NotZero(t, created.CreatedAt)
}

func TestCreateMovie_PlanToWatchForcesNullRating(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	// クライアントが評価を送ってきてもNULLで保存される
	w := doAuthedJSON(t, r, "POST", "/movies", token, map[string]interface{}{
		"title":        "Arrival",
		"genre":        "Sci-Fi",
		"release_year": 2016,
		"rating":       4,
		"status":       "Plan to Watch",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Movie
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Nil(t, created.Rating, "Plan to Watchの評価はNULLに強制される")

	// データベース上もNULLであること
	var dbRating *int
	err = db.QueryRow("SELECT rating FROM movies WHERE id = ?", created.ID).Scan(&dbRating)
	require.NoError(t, err)
	assert.Nil(t, dbRating)
}

func TestCreateMovie_WatchedWithoutRating(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := doAuthedJSON(t, r, "POST", "/movies", token, map[string]interface{}{
		"title":        "Dune",
		"genre":        "Sci-Fi",
		"release_year": 2021,
		"status":       "Watched",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Rating is required for watched and watching movies!")
}

func TestCreateMovie_MissingFields(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := doAuthedJSON(t, r, "POST", "/movies", token, map[string]interface{}{
		"title": "Dune",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Title, genre, release year, and status are required!")
}

func TestCreateMovie_InvalidStatus(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := doAuthedJSON(t, r, "POST", "/movies", token, map[string]interface{}{
		"title":        "Dune",
		"genre":        "Sci-Fi",
		"release_year": 2021,
		"rating":       5,
		"status":       "Dropped",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid status")
}

func TestListMovies_OwnershipScoping(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	tokenA, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)
	tokenB, err := testutil.LoginAndGetToken(t, r, "second_user@example.com", "password456")
	require.NoError(t, err)

	testutil.CreateTestMovie(t, r, tokenA, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")
	testutil.CreateTestMovie(t, r, tokenA, "Arrival", "Sci-Fi", 2016, testutil.IntPtr(4), "Watched")

	// ユーザーAはタイトル昇順で Arrival, Dune の2件
	code, raw, movies := listMovies(t, r, tokenA, "offset=0&limit=10&sort=title_asc")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "2", string(raw["totalMovies"]))
	require.Len(t, movies, 2)
	assert.Equal(t, "Arrival", movies[0].Title)
	assert.Equal(t, "Dune", movies[1].Title)

	// ユーザーBの同一クエリは空
	code, raw, movies = listMovies(t, r, tokenB, "offset=0&limit=10&sort=title_asc")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "0", string(raw["totalMovies"]))
	assert.Len(t, movies, 0)
}

func TestListMovies_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")
	testutil.CreateTestMovie(t, r, token, "Arrival", "Sci-Fi", 2016, testutil.IntPtr(4), "Watched")

	code, raw, movies := listMovies(t, r, token, "search=dUN")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "1", string(raw["totalMovies"]))
	require.Len(t, movies, 1)
	assert.Equal(t, "Dune", movies[0].Title)

	// 空白のみの検索は絞り込みなし
	code, raw, _ = listMovies(t, r, token, "search=%20%20")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "2", string(raw["totalMovies"]))
}

func TestListMovies_SortByReleaseYearDesc(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	testutil.CreateTestMovie(t, r, token, "Arrival", "Sci-Fi", 2016, testutil.IntPtr(4), "Watched")
	testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")
	testutil.CreateTestMovie(t, r, token, "Blade Runner", "Sci-Fi", 1982, testutil.IntPtr(5), "Watched")

	code, _, movies := listMovies(t, r, token, "sort=release_year_desc")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, movies, 3)
	assert.Equal(t, []int{2021, 2016, 1982}, []int{movies[0].ReleaseYear, movies[1].ReleaseYear, movies[2].ReleaseYear})
}

func TestListMovies_UnknownSortFallsBackToTitleAsc(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")
	testutil.CreateTestMovie(t, r, token, "Arrival", "Sci-Fi", 2016, testutil.IntPtr(4), "Watched")

	codeBogus, _, bogusMovies := listMovies(t, r, token, "sort=bogus_desc")
	codeTitle, _, titleMovies := listMovies(t, r, token, "sort=title_asc")

	require.Equal(t, http.StatusOK, codeBogus)
	require.Equal(t, http.StatusOK, codeTitle)
	require.Len(t, bogusMovies, 2)
	assert.Equal(t, titleMovies[0].ID, bogusMovies[0].ID, "未知のソートキーはtitle昇順と同じ並びになる")
	assert.Equal(t, titleMovies[1].ID, bogusMovies[1].ID)
}

func TestListMovies_PaginationAndTotalCount(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		testutil.CreateTestMovie(t, r, token, fmt.Sprintf("Movie %d", i), "Drama", 2000+i, testutil.IntPtr(3), "Watched")
	}

	// offset形式
	code, raw, movies := listMovies(t, r, token, "offset=0&limit=2&sort=release_year_asc")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "5", string(raw["totalMovies"]), "総件数はページングに関係なく全件")
	assert.Len(t, movies, 2)

	code, _, movies = listMovies(t, r, token, "offset=4&limit=2&sort=release_year_asc")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, movies, 1, "最終ページは端数のみ")

	// page形式はcurrentPageを返す
	code, raw, movies = listMovies(t, r, token, "page=2&limit=2&sort=release_year_asc")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "2", string(raw["currentPage"]))
	require.Len(t, movies, 2)
	assert.Equal(t, 2002, movies[0].ReleaseYear)
}

func TestListMovies_StablePaginationAcrossTies(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	// 全件同じタイトルでソートキーが同値になるケース
	for i := 0; i < 4; i++ {
		testutil.CreateTestMovie(t, r, token, "Same Title", "Drama", 2001, testutil.IntPtr(3), "Watched")
	}

	_, _, page1 := listMovies(t, r, token, "offset=0&limit=2&sort=title_asc")
	_, _, page2 := listMovies(t, r, token, "offset=2&limit=2&sort=title_asc")

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	seen := map[int]bool{}
	for _, m := range append(page1, page2...) {
		assert.False(t, seen[m.ID], "同値タイでもページ間で重複しない")
		seen[m.ID] = true
	}
}

func TestUpdateMovie_Success(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	created := testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(3), "Watching")

	w := doAuthedJSON(t, r, "PUT", fmt.Sprintf("/movies/%d", created.ID), token, map[string]interface{}{
		"rating": 5,
		"status": "Watched",
	})

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response struct {
		Message string       `json:"message"`
		Movie   models.Movie `json:"movie"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Movie updated successfully.", response.Message)
	assert.Equal(t, models.StatusWatched, response.Movie.Status)
	require.NotNil(t, response.Movie.Rating)
	assert.Equal(t, 5, *response.Movie.Rating)
	assert.Equal(t, "Dune", response.Movie.Title, "パッチに含めないフィールドは変わらない")
}

func TestUpdateMovie_OtherUsersMovieIsNotFound(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	tokenA, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)
	tokenB, err := testutil.LoginAndGetToken(t, r, "second_user@example.com", "password456")
	require.NoError(t, err)

	created := testutil.CreateTestMovie(t, r, tokenA, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")

	// 他人の映画は403ではなく404。存在の有無を漏らさない
	w := doAuthedJSON(t, r, "PUT", fmt.Sprintf("/movies/%d", created.ID), tokenB, map[string]interface{}{
		"title": "Hijacked",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Movie not found.")
}

func TestUpdateMovie_InvariantEnforcedOnUpdate(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	// Plan to Watch へ変更すると評価はNULLへ戻る
	watched := testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")
	w := doAuthedJSON(t, r, "PUT", fmt.Sprintf("/movies/%d", watched.ID), token, map[string]interface{}{
		"status": "Plan to Watch",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response struct {
		Movie models.Movie `json:"movie"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Nil(t, response.Movie.Rating)

	// 評価のないままWatchedへは変更できない
	planned := testutil.CreateTestMovie(t, r, token, "Arrival", "Sci-Fi", 2016, nil, "Plan to Watch")
	w = doAuthedJSON(t, r, "PUT", fmt.Sprintf("/movies/%d", planned.ID), token, map[string]interface{}{
		"status": "Watched",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Rating is required for watched and watching movies!")
}

func TestDeleteMovie_SuccessAndRepeatIsNotFound(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	created := testutil.CreateTestMovie(t, r, token, "Dune", "Sci-Fi", 2021, testutil.IntPtr(5), "Watched")

	w := doAuthedJSON(t, r, "DELETE", fmt.Sprintf("/movies/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Movie deleted successfully.")

	// 二重削除はNotFound
	w = doAuthedJSON(t, r, "DELETE", fmt.Sprintf("/movies/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Movie not found or already deleted.")
}

func TestDeleteMovie_NonexistentIsNotFound(t *testing.T) {
	db, r, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, r, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := doAuthedJSON(t, r, "DELETE", "/movies/99999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
