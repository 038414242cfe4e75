package client

import (
	"sync"
	"time"
)

// State は一覧ビューの状態です。
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateErrored
)

// Mode は一覧の消費モードです。
type Mode int

const (
	// ModePaged はページ番号を持ち、取得のたびに表示セットを置き換えます。
	ModePaged Mode = iota
	// ModeIncremental は無限スクロール用で、取得結果を既存のリストに追記します。
	ModeIncremental
)

// DefaultDebounce は検索入力のデバウンス間隔です。
const DefaultDebounce = 500 * time.Millisecond

// ListController はページング・検索・ソートを持つ一覧のクライアント側状態を管理します。
// 検索キーストロークはデバウンスで1回のクエリにまとめられ、
// パラメータ変更後に届いた古いレスポンスはシーケンスガードで破棄されます。
type ListController struct {
	client *Client
	mode   Mode

	mu          sync.Mutex
	state       State
	movies      []Movie
	totalMovies int
	lastErr     error

	page      int  // ModePaged: 現在のページ番号 (1始まり)
	offset    int  // ModeIncremental: 次に要求するオフセット
	exhausted bool // ModeIncremental: 最終ページまで読み切ったか

	searchInput string // デバウンス前の生入力
	search      string // 確定済みの検索語
	sort        string
	limit       int

	debounce time.Duration
	timer    *time.Timer
	fetchSeq uint64

	onChange func()
}

// NewListController は新しいListControllerを作成します。
func NewListController(c *Client, mode Mode) *ListController {
	return &ListController{
		client:   c,
		mode:     mode,
		state:    StateIdle,
		page:     1,
		limit:    10,
		debounce: DefaultDebounce,
	}
}

// SetLimit は1ページあたりの件数を設定します。取得開始前に呼んでください。
func (lc *ListController) SetLimit(limit int) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if limit > 0 {
		lc.limit = limit
	}
}

// SetDebounceInterval はデバウンス間隔を設定します（テスト用に短縮できます）。
func (lc *ListController) SetDebounceInterval(d time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.debounce = d
}

// OnChange は状態が変わるたびに呼ばれるコールバックを登録します。
// コールバックはロック外で呼ばれます。
func (lc *ListController) OnChange(fn func()) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.onChange = fn
}

// Start は最初のページを読み込みます。
func (lc *ListController) Start() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.resetAndFetchLocked()
}

// SetSearch は検索キーストロークを受け取ります。
// 入力が debounce 間隔静止してから検索語が確定し、1回だけ再取得します。
func (lc *ListController) SetSearch(input string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.searchInput = input
	if lc.timer != nil {
		lc.timer.Stop()
	}
	lc.timer = time.AfterFunc(lc.debounce, lc.applyDebouncedSearch)
}

func (lc *ListController) applyDebouncedSearch() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.searchInput == lc.search {
		return
	}
	lc.search = lc.searchInput
	lc.resetAndFetchLocked()
}

// SetSort はソートキーを変更し、先頭から再取得します。
func (lc *ListController) SetSort(sort string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if sort == lc.sort {
		return
	}
	lc.sort = sort
	lc.resetAndFetchLocked()
}

// SetPage は指定ページへ移動します（ModePagedのみ）。
func (lc *ListController) SetPage(page int) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.mode != ModePaged || page < 1 {
		return
	}
	lc.page = page
	lc.fetchLocked((page-1)*lc.limit, true)
}

// LoadMore は次のページを既存リストに追記します（ModeIncrementalのみ）。
// 読み切った後、およびロード中は何もしません。
func (lc *ListController) LoadMore() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.mode != ModeIncremental || lc.exhausted || lc.state == StateLoading {
		return
	}
	lc.fetchLocked(lc.offset, false)
}

// Refresh はミューテーション後の再取得を行います。
// ModePaged は現在ページを取り直し、ModeIncremental はオフセットのずれによる
// 重複・欠落を避けるため先頭からリストを作り直します。
func (lc *ListController) Refresh() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.mode == ModePaged {
		lc.fetchLocked((lc.page-1)*lc.limit, true)
		return
	}
	lc.offset = 0
	lc.exhausted = false
	lc.fetchLocked(0, true)
}

// Create は映画を登録し、成功したら一覧を再取得します。
func (lc *ListController) Create(input MovieInput) (*Movie, error) {
	movie, err := lc.client.CreateMovie(input)
	if err != nil {
		return nil, err
	}
	lc.Refresh()
	return movie, nil
}

// Update は映画を更新し、成功したら一覧を再取得します。
func (lc *ListController) Update(id int, patch map[string]interface{}) (*Movie, error) {
	movie, err := lc.client.UpdateMovie(id, patch)
	if err != nil {
		return nil, err
	}
	lc.Refresh()
	return movie, nil
}

// Delete は映画を削除し、成功したら一覧を再取得します。
func (lc *ListController) Delete(id int) error {
	if err := lc.client.DeleteMovie(id); err != nil {
		return err
	}
	lc.Refresh()
	return nil
}

// resetAndFetchLocked はページ・オフセットを先頭に戻して取得し直します。
func (lc *ListController) resetAndFetchLocked() {
	lc.page = 1
	lc.offset = 0
	lc.exhausted = false
	lc.fetchLocked(0, true)
}

// fetchLocked は非同期で1ページ取得します。呼び出し側がロックを保持していること。
// 発行時のシーケンス番号と一致しないレスポンスは、後から届いても捨てられます。
func (lc *ListController) fetchLocked(offset int, replace bool) {
	lc.state = StateLoading
	lc.fetchSeq++
	seq := lc.fetchSeq

	params := ListParams{
		Offset: offset,
		Limit:  lc.limit,
		Search: lc.search,
		Sort:   lc.sort,
	}
	limit := lc.limit
	lc.notifyLocked()

	go func() {
		result, err := lc.client.ListMovies(params)

		lc.mu.Lock()
		if seq != lc.fetchSeq {
			// パラメータ変更で置き換えられた古いレスポンス
			lc.mu.Unlock()
			return
		}

		if err != nil {
			lc.state = StateErrored
			lc.lastErr = err
		} else {
			if replace {
				lc.movies = result.Movies
			} else {
				lc.movies = append(lc.movies, result.Movies...)
			}
			lc.totalMovies = result.TotalMovies
			if lc.mode == ModeIncremental {
				lc.offset = len(lc.movies)
				if len(result.Movies) < limit {
					lc.exhausted = true
				}
			}
			lc.state = StateLoaded
			lc.lastErr = nil
		}
		fn := lc.onChange
		lc.mu.Unlock()

		if fn != nil {
			fn()
		}
	}()
}

// notifyLocked はロック保持中から呼ばれ、コールバックをロック外で実行します。
func (lc *ListController) notifyLocked() {
	fn := lc.onChange
	if fn == nil {
		return
	}
	go fn()
}

// State は現在の状態を返します。
func (lc *ListController) State() State {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

// Movies は現在表示中のリストのコピーを返します。
func (lc *ListController) Movies() []Movie {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]Movie, len(lc.movies))
	copy(out, lc.movies)
	return out
}

// TotalMovies は絞り込み後の総件数を返します。
func (lc *ListController) TotalMovies() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.totalMovies
}

// TotalPages は総ページ数を返します。
func (lc *ListController) TotalPages() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.totalMovies == 0 {
		return 1
	}
	return (lc.totalMovies + lc.limit - 1) / lc.limit
}

// Page は現在のページ番号を返します（ModePaged）。
func (lc *ListController) Page() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.page
}

// Exhausted は最終ページまで読み切ったかを返します（ModeIncremental）。
func (lc *ListController) Exhausted() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.exhausted
}

// Err は直近の取得エラーを返します。
func (lc *ListController) Err() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.lastErr
}
