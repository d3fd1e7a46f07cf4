// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/hitoshi/pensinova/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// すべての操作はパラメータ化クエリで実行し、入力値を文字列連結しない。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Insert はユーザーを作成する。
	// user.IDが空の場合はストアが "userN" 形式の一意なIDを採番し、user.IDに設定する。
	// emailまたはidが既に存在する場合はmodel.ErrConstraintViolationを返す。
	Insert(ctx context.Context, user *model.User) error

	// Count は登録ユーザー数を返す。
	Count(ctx context.Context) (int, error)

	// List は全ユーザーをID順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// SessionStore はセッションデータの永続化インターフェース。
// scs.SessionManagerのStoreとして差し替え可能。
type SessionStore interface {
	scs.Store
}

// ExpiredSessionPurger は期限切れセッションを一括削除できるストア。
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// localIDPrefix はローカル登録ユーザーのIDプレフィックス。
const localIDPrefix = "user"
