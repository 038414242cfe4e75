// Package client は映画ウォッチリストAPIのGoクライアントです。
// サーバー側のエンドポイントと1対1で対応するメソッドを提供します。
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Movie はAPIが返す映画レコードです。
type Movie struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	ReleaseYear int       `json:"release_year"`
	Rating      *int      `json:"rating"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MovieList は一覧APIのレスポンスです。
type MovieList struct {
	Movies      []Movie `json:"movies"`
	TotalMovies int     `json:"totalMovies"`
	CurrentPage int     `json:"currentPage,omitempty"`
}

// MovieInput は映画の登録・更新に使う入力です。
// Rating は未視聴ならnilのままにします。
type MovieInput struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	ReleaseYear int    `json:"release_year"`
	Rating      *int   `json:"rating,omitempty"`
	Status      string `json:"status"`
}

// LoginResult はログイン成功時のレスポンスです。
type LoginResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ListParams は一覧取得のクエリパラメータです。
type ListParams struct {
	Offset int
	Limit  int
	Search string
	Sort   string
}

// APIError はサーバーが返したエラーレスポンスです。
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client はAPIサーバーへのHTTPクライアントです。
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token string
}

// New は新しいClientを作成します。
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken はBearerトークンを設定します。ログイン成功時は自動で設定されます。
func (c *Client) SetToken(token string) {
	c.token = token
}

// do はリクエストを送信し、2xxならoutへデコードします。
// エラーレスポンスは message フィールドを持つJSONとして解釈します。
func (c *Client) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// Signup はユーザー登録を行います。セッションは発行されません。
func (c *Client) Signup(username, email, password string) error {
	payload := map[string]string{"username": username, "email": email, "password": password}
	return c.do(http.MethodPost, "/signup", payload, nil)
}

// Login はログインし、成功したらトークンをクライアントに保持します。
func (c *Client) Login(email, password string) (*LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.do(http.MethodPost, "/login", payload, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Logout は保持しているトークンを破棄します。
func (c *Client) Logout() {
	c.token = ""
}

// Profile は認証済みユーザーのプロフィールメッセージを返します。
func (c *Client) Profile() (string, error) {
	var result struct {
		Message string `json:"message"`
	}
	if err := c.do(http.MethodGet, "/profile", nil, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// ForgotPassword はパスワードリセットメールの送信を依頼します。
func (c *Client) ForgotPassword(email string) error {
	return c.do(http.MethodPost, "/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword はリセットトークンで新しいパスワードを設定します。
func (c *Client) ResetPassword(token, password string) error {
	return c.do(http.MethodPost, "/reset-password/"+token, map[string]string{"password": password}, nil)
}

// ListMovies は映画一覧を1ページ分取得します。
func (c *Client) ListMovies(p ListParams) (*MovieList, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(p.Offset))
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}

	var result MovieList
	if err := c.do(http.MethodGet, "/movies?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateMovie は映画を登録します。
func (c *Client) CreateMovie(input MovieInput) (*Movie, error) {
	var movie Movie
	if err := c.do(http.MethodPost, "/movies", input, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// UpdateMovie は映画を部分更新します。patch に含めたフィールドだけが送信されます。
func (c *Client) UpdateMovie(id int, patch map[string]interface{}) (*Movie, error) {
	var result struct {
		Message string `json:"message"`
		Movie   Movie  `json:"movie"`
	}
	if err := c.do(http.MethodPut, "/movies/"+strconv.Itoa(id), patch, &result); err != nil {
		return nil, err
	}
	return &result.Movie, nil
}

// DeleteMovie は映画を削除します。
func (c *Client) DeleteMovie(id int) error {
	return c.do(http.MethodDelete, "/movies/"+strconv.Itoa(id), nil, nil)
}
