// Package pagination はコレクションごとのページング状態を管理する。
//
// 状態は Idle → Loading → {HasMore | Finished} と遷移し、Finishedは終端。
// Loading中は新しい取得を開始できないため、同じコレクションに対して
// 取得が同時に2つ走ることはない。
package pagination

import (
	"sync"

	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
)

// Phase はコレクションの状態。
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseHasMore
	PhaseFinished
)

// String はログ出力用の表記を返す。
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseHasMore:
		return "has_more"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Outcome は1回の取得が状態に与えた結果。
type Outcome int

const (
	// OutcomeIgnored は取得中でない状態に結果が届いた（破棄した）。
	OutcomeIgnored Outcome = iota
	// OutcomeAppended はアイテムを追加した。
	OutcomeAppended
	// OutcomeEmpty は最初のページが空だった。
	OutcomeEmpty
	// OutcomeExhausted は2ページ目以降が空だった。
	OutcomeExhausted
	// OutcomeFirstPageError は最初のページの取得に失敗した。
	OutcomeFirstPageError
	// OutcomeStopped は2ページ目以降の取得に失敗し、以降の取得をやめた。
	OutcomeStopped
)

// String はログ・メトリクス用の表記を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAppended:
		return "appended"
	case OutcomeEmpty:
		return "empty"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFirstPageError:
		return "first_page_error"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Result はComplete/Failの結果。
type Result struct {
	Outcome  Outcome
	Page     int                 // 結果を受け取ったページ番号
	Appended []model.ContentItem // 今回追加したアイテム
	Finished bool
	Err      error // Failに渡されたエラー
}

// State は1コレクション分のページング状態。
type State struct {
	mu sync.Mutex

	kind      model.Kind
	pageSize  int
	paginated bool

	page     int
	loading  bool
	finished bool
	items    []model.ContentItem
}

// New はStateを生成する。paginatedがfalseのAPIは1回の取得で終了する。
func New(kind model.Kind, pageSize int, paginated bool) *State {
	return &State{
		kind:      kind,
		pageSize:  pageSize,
		paginated: paginated,
	}
}

// Kind はコレクション種別を返す。
func (s *State) Kind() model.Kind { return s.kind }

// PageSize は1ページの要求件数を返す。
func (s *State) PageSize() int { return s.pageSize }

// Paginated はAPIがページングに対応しているかを返す。
func (s *State) Paginated() bool { return s.paginated }

// Begin は取得を開始する。取得中または終了済みの場合はfalseを返し、何もしない。
// 開始できた場合は要求すべきページ番号を返す。
func (s *State) Begin() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading || s.finished {
		return 0, false
	}
	s.loading = true
	return s.page, true
}

// Complete は取得結果を反映する。
func (s *State) Complete(items []model.ContentItem, requestedSize int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loading {
		return Result{Outcome: OutcomeIgnored, Page: s.page, Finished: s.finished}
	}
	s.loading = false
	page := s.page

	if len(items) == 0 {
		s.finished = true
		if page == 0 {
			return Result{Outcome: OutcomeEmpty, Page: page, Finished: true}
		}
		return Result{Outcome: OutcomeExhausted, Page: page, Finished: true}
	}

	appended := make([]model.ContentItem, len(items))
	copy(appended, items)
	s.items = append(s.items, appended...)
	s.page++
	if !s.paginated || len(items) < requestedSize {
		s.finished = true
	}

	return Result{Outcome: OutcomeAppended, Page: page, Appended: appended, Finished: s.finished}
}

// Fail は取得失敗を反映する。
// 最初のページの失敗はIdleに戻して再試行できるようにし、
// 2ページ目以降の失敗は表示済みのアイテムを残したまま終了する。
func (s *State) Fail(err error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loading {
		return Result{Outcome: OutcomeIgnored, Page: s.page, Finished: s.finished}
	}
	s.loading = false

	if s.page == 0 {
		return Result{Outcome: OutcomeFirstPageError, Page: 0, Err: err}
	}
	s.finished = true
	return Result{Outcome: OutcomeStopped, Page: s.page, Finished: true, Err: err}
}

// Abort はビュー破棄などで取得を打ち切った場合に取得中フラグだけを解除する。
func (s *State) Abort() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// Reset はタブの再表示に備えてページ・終了フラグ・アイテムを初期化する。
// 取得中は初期化せずfalseを返す。
func (s *State) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return false
	}
	s.page = 0
	s.finished = false
	s.items = nil
	return true
}

// Phase は現在の状態を返す。
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.loading:
		return PhaseLoading
	case s.finished:
		return PhaseFinished
	case s.page == 0:
		return PhaseIdle
	default:
		return PhaseHasMore
	}
}

// Page は次に要求するページ番号を返す。
func (s *State) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Loading は取得中かを返す。
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Finished は終了済みかを返す。
func (s *State) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Len は保持しているアイテム数を返す。
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items は作成日時の降順（同時刻は取得順）に並べたアイテムのコピーを返す。
func (s *State) Items() []model.ContentItem {
	s.mu.Lock()
	out := make([]model.ContentItem, len(s.items))
	copy(out, s.items)
	s.mu.Unlock()

	content.SortByCreatedAtDesc(out)
	return out
}
