// Package model はドメインモデルを定義する。
package model

// User はサービス利用ユーザーを表す。
// IDはIdPが発行した外部ID、またはローカル登録時にストアが採番した "userN" 形式のID。
type User struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Password  *string `json:"-"` // bcryptハッシュ。IdP経由で作成されたユーザーはnil
	Photo     *string `json:"photo"`
}

// HasLocalPassword はローカルパスワードが設定されているかを返す。
func (u *User) HasLocalPassword() bool {
	return u.Password != nil && *u.Password != ""
}

// DisplayName は画面表示用の氏名を返す。
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// ExternalProfile はIdPから取得した検証済みプロフィールを表す。
type ExternalProfile struct {
	Provider   string
	ExternalID string
	GivenName  string
	FamilyName string
	Email      string
	PhotoURL   string
}

// StringPtr は空文字列をnilとして扱うポインタ変換ヘルパー。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
