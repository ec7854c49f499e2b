// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// DATABASE_URL に memory:// を指定したローカル起動とテストで使用する。
// プロセス終了とともにデータは失われる。
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
)

// Store は全リポジトリを1つのミューテックスで保護するインメモリストア。
type Store struct {
	mu sync.RWMutex

	accounts    map[string]*model.Account
	sessions    map[string]*model.Session
	profiles    map[string]*model.Profile
	communities map[string]*model.Community
	messages    map[string][]*model.Message
	activities  []*model.Activity

	seq  int64
	last time.Time
	now  func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		accounts:    map[string]*model.Account{},
		sessions:    map[string]*model.Session{},
		profiles:    map[string]*model.Profile{},
		communities: map[string]*model.Community{},
		messages:    map[string][]*model.Message{},
		now:         time.Now,
	}
}

// SetClock は時刻の取得元を差し替える。
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// tick はストレージ側の採番時刻を返す。同一時刻が連続しても単調増加させる。
// 呼び出し元がロックを保持していること。
func (s *Store) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Accounts はAccountRepositoryとしてのビューを返す。
func (s *Store) Accounts() *AccountRepo { return &AccountRepo{s} }

// Sessions はSessionRepositoryとしてのビューを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s} }

// Profiles はProfileRepositoryとしてのビューを返す。
func (s *Store) Profiles() *ProfileRepo { return &ProfileRepo{s} }

// Communities はCommunityRepositoryとしてのビューを返す。
func (s *Store) Communities() *CommunityRepo { return &CommunityRepo{s} }

// Messages はMessageRepositoryとしてのビューを返す。
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s} }

// Activities はActivityRepositoryとしてのビューを返す。
func (s *Store) Activities() *ActivityRepo { return &ActivityRepo{s} }

// Ping はヘルスチェック用。常に成功する。
func (s *Store) Ping() error { return nil }

// AccountRepo はインメモリのAccountRepository。
type AccountRepo struct{ s *Store }

// Create はアカウントを作成する。メールアドレスは大文字小文字を区別せず重複を検出する。
func (r *AccountRepo) Create(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *a
	r.s.accounts[a.ID] = &cp
	return nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *AccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *AccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *AccountRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = r.s.now()
	return nil
}

// DeleteByID はアカウントと、そのプロフィール・セッションを削除する。
func (r *AccountRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.accounts, id)
	delete(r.s.profiles, id)
	maps.DeleteFunc(r.s.sessions, func(_ string, v *model.Session) bool { return v.UserID == id })
	return nil
}

// SessionRepo はインメモリのSessionRepository。
type SessionRepo struct{ s *Store }

// Create はセッションを保存する。
func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[id]
	if !ok || session.Expired(r.s.now()) {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maps.DeleteFunc(r.s.sessions, func(_ string, v *model.Session) bool { return v.UserID == userID })
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *SessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before := len(r.s.sessions)
	maps.DeleteFunc(r.s.sessions, func(_ string, v *model.Session) bool { return v.Expired(now) })
	return int64(before - len(r.s.sessions)), nil
}

// ProfileRepo はインメモリのProfileRepository。
type ProfileRepo struct{ s *Store }

func cloneProfile(p *model.Profile) *model.Profile {
	cp := *p
	cp.Interests = append([]string{}, p.Interests...)
	cp.Communities = append([]string{}, p.Communities...)
	return &cp
}

// FindByID は指定IDのプロフィールの複製を返す。見つからない場合はnilを返す。
func (r *ProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

// Set はプロフィール全体を書き込む。
func (r *ProfileRepo) Set(_ context.Context, p *model.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.profiles[p.ID] = cloneProfile(p)
	return nil
}

// Update は指定フィールドのみを更新する。プロフィールがない場合はfalseを返す。
func (r *ProfileRepo) Update(_ context.Context, id string, u model.ProfileUpdate) (bool, error) {
	if u.Empty() {
		return false, repository.ErrEmptyUpdate
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return false, nil
	}
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.Interests != nil {
		p.Interests = append([]string{}, u.Interests...)
	}
	return true, nil
}

// AddCommunity は参加コミュニティIDを冪等に追加する。新たに追加された場合のみtrueを返す。
func (r *ProfileRepo) AddCommunity(_ context.Context, id, communityID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok || slices.Contains(p.Communities, communityID) {
		return false, nil
	}
	p.Communities = append(p.Communities, communityID)
	return true, nil
}

// RemoveCommunity は参加コミュニティIDを削除する。削除された場合のみtrueを返す。
func (r *ProfileRepo) RemoveCommunity(_ context.Context, id, communityID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok || !slices.Contains(p.Communities, communityID) {
		return false, nil
	}
	p.Communities = slices.DeleteFunc(p.Communities, func(c string) bool { return c == communityID })
	return true, nil
}

// CommunityRepo はインメモリのCommunityRepository。
type CommunityRepo struct{ s *Store }

// List は全コミュニティを作成日時の降順で返す。同時刻の場合はID降順。
func (r *CommunityRepo) List(_ context.Context) ([]*model.Community, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := make([]*model.Community, 0, len(r.s.communities))
	for _, c := range r.s.communities {
		cp := *c
		list = append(list, &cp)
	}
	slices.SortFunc(list, func(a, b *model.Community) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return list, nil
}

// Create はコミュニティを保存し、採番したCreatedAtを書き戻す。
func (r *CommunityRepo) Create(_ context.Context, c *model.Community) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.CreatedAt = r.s.tick()
	cp := *c
	r.s.communities[c.ID] = &cp
	return nil
}

// FindByID は指定IDのコミュニティを取得する。見つからない場合はnilを返す。
func (r *CommunityRepo) FindByID(_ context.Context, id string) (*model.Community, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.communities[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// MessageRepo はインメモリのMessageRepository。
type MessageRepo struct{ s *Store }

// Append はメッセージを追加し、SentAtとSeqを採番する。
func (r *MessageRepo) Append(_ context.Context, msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	msg.Seq = r.s.seq
	msg.SentAt = r.s.tick()
	cp := *msg
	r.s.messages[msg.CommunityID] = append(r.s.messages[msg.CommunityID], &cp)
	return nil
}

// ListByCommunity はコミュニティのメッセージを送信時刻の昇順で返す。
func (r *MessageRepo) ListByCommunity(_ context.Context, communityID string) ([]*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stored := r.s.messages[communityID]
	list := make([]*model.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m
		list = append(list, &cp)
	}
	model.SortMessages(list)
	return list, nil
}

// ActivityRepo はインメモリのActivityRepository。
type ActivityRepo struct{ s *Store }

// Record は監査ログを1件追加する。
func (r *ActivityRepo) Record(_ context.Context, a *model.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	cp.Details = maps.Clone(a.Details)
	r.s.activities = append(r.s.activities, &cp)
	return nil
}

// ListByUser はユーザーの監査ログを新しい順に最大limit件返す。
func (r *ActivityRepo) ListByUser(_ context.Context, userID string, limit int) ([]*model.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []*model.Activity{}
	for i := len(r.s.activities) - 1; i >= 0 && len(list) < limit; i-- {
		if a := r.s.activities[i]; a.UserID == userID {
			cp := *a
			list = append(list, &cp)
		}
	}
	return list, nil
}

// DeleteBefore は指定日時より古い監査ログを削除し、削除件数を返す。
func (r *ActivityRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := len(r.s.activities)
	r.s.activities = slices.DeleteFunc(r.s.activities, func(a *model.Activity) bool { return a.CreatedAt.Before(before) })
	return int64(n - len(r.s.activities)), nil
}

// compile-time interface checks
var (
	_ repository.AccountRepository   = (*AccountRepo)(nil)
	_ repository.SessionRepository   = (*SessionRepo)(nil)
	_ repository.ProfileRepository   = (*ProfileRepo)(nil)
	_ repository.CommunityRepository = (*CommunityRepo)(nil)
	_ repository.MessageRepository   = (*MessageRepo)(nil)
	_ repository.ActivityRepository  = (*ActivityRepo)(nil)
)
