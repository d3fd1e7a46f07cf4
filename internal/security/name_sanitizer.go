// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer は氏名などのプレーンテキスト入力からマークアップを除去する。
// 保存値はテキストとして扱い、HTMLエスケープは表示時のテンプレートに任せる。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はすべてのタグを除去するポリシーでNameSanitizerを生成する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName はタグと制御文字を取り除き、前後の空白を詰める。
func (s *NameSanitizer) SanitizeName(name string) string {
	if name == "" {
		return ""
	}
	// StrictPolicyは&や<をエンティティ化するため、テキストに戻す
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}
