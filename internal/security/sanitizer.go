// Package security はユーザー入力の無害化と検証を提供する。
//
// チャット本文やコミュニティ説明はプレーンテキストとして保存する。
// bluemondayのStrictPolicyでマークアップを除去し、エスケープされた文字は元に戻す。
// 元に戻した結果がタグを含む場合は、変化がなくなるまで除去を繰り返す。
package security

import (
	"html"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストからマークアップを除去するインターフェース。
type TextSanitizer interface {
	// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(s string) string
}

// maxSanitizePasses はエンティティの多重エスケープを展開する最大回数。
const maxSanitizePasses = 4

// textSanitizer はTextSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、前後の空白を取り除いたテキストを返す。
// &lt;b&gt; のようにエスケープされたタグも展開後に除去される。
func (s *textSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}
	cur := in
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(cur)))
		if next == cur {
			return next
		}
		cur = next
	}
	// 展開が収束しない入力はエスケープしたまま返す
	return strings.TrimSpace(s.policy.Sanitize(cur))
}

// ValidEmail はメールアドレスが単一のアドレスとして解釈でき、表示名を含まないかを返す。
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address, "@")
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
