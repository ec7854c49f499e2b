package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, community, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidEmail          = "INVALID_EMAIL"
	ErrCodeUsernameTooShort      = "USERNAME_TOO_SHORT"
	ErrCodeUsernameTooLong       = "USERNAME_TOO_LONG"
	ErrCodePasswordTooShort      = "PASSWORD_TOO_SHORT"
	ErrCodeNoInterests           = "NO_INTERESTS"
	ErrCodeUnknownInterest       = "UNKNOWN_INTEREST"
	ErrCodeEmailTaken            = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeInvalidResetToken     = "INVALID_RESET_TOKEN"
	ErrCodeCommunityNameTooShort = "COMMUNITY_NAME_TOO_SHORT"
	ErrCodeCommunityNotFound     = "COMMUNITY_NOT_FOUND"
	ErrCodeNotAMember            = "NOT_A_MEMBER"
	ErrCodeEmptyMessage          = "EMPTY_MESSAGE"
	ErrCodeMessageTooLong        = "MESSAGE_TOO_LONG"
	ErrCodeProfileNotFound       = "PROFILE_NOT_FOUND"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeCSRFInvalid           = "CSRF_INVALID"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// 入力値の制約
const (
	MinUsernameLen      = 3
	MaxUsernameLen      = 20
	MinPasswordLen      = 6
	MinCommunityNameLen = 3
	MaxMessageLen       = 2000
)

// NewInvalidRequestError はリクエスト形式の不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidEmailError はメールアドレス形式の不正エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "有効なメールアドレスを入力してください。",
	}
}

// NewUsernameTooShortError はユーザー名が短すぎる場合のエラーを生成する。
func NewUsernameTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTooShort,
		Message:  fmt.Sprintf("ユーザー名は%d文字以上である必要があります。", MinUsernameLen),
		Category: "validation",
		Action:   "より長いユーザー名を入力してください。",
	}
}

// NewUsernameTooLongError はユーザー名が長すぎる場合のエラーを生成する。
func NewUsernameTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTooLong,
		Message:  fmt.Sprintf("ユーザー名は%d文字以内である必要があります。", MaxUsernameLen),
		Category: "validation",
		Action:   "より短いユーザー名を入力してください。",
	}
}

// NewPasswordTooShortError はパスワードが短すぎる場合のエラーを生成する。
func NewPasswordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上である必要があります。", MinPasswordLen),
		Category: "validation",
		Action:   "より長いパスワードを入力してください。",
	}
}

// NewNoInterestsError は興味タグが1つも選択されていない場合のエラーを生成する。
func NewNoInterestsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoInterests,
		Message:  "興味のあるトピックを1つ以上選択してください。",
		Category: "validation",
		Action:   "興味タグを選択してから再度お試しください。",
	}
}

// NewUnknownInterestError はカタログにない興味タグが指定された場合のエラーを生成する。
func NewUnknownInterestError(tag string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownInterest,
		Message:  fmt.Sprintf("未対応の興味タグです: %s", tag),
		Category: "validation",
		Action:   "一覧に表示されている興味タグから選択してください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、パスワードを再設定してください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewInvalidResetTokenError はパスワード再設定トークンが無効な場合のエラーを生成する。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Message:  "パスワード再設定リンクが無効または期限切れです。",
		Category: "auth",
		Action:   "もう一度パスワード再設定メールを送信してください。",
	}
}

// NewCommunityNameTooShortError はコミュニティ名が短すぎる場合のエラーを生成する。
func NewCommunityNameTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeCommunityNameTooShort,
		Message:  fmt.Sprintf("コミュニティ名は%d文字以上である必要があります。", MinCommunityNameLen),
		Category: "validation",
		Action:   "より長いコミュニティ名を入力してください。",
	}
}

// NewCommunityNotFoundError はコミュニティが見つからない場合のエラーを生成する。
func NewCommunityNotFoundError(communityID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommunityNotFound,
		Message:  fmt.Sprintf("指定されたコミュニティが見つかりません: %s", communityID),
		Category: "community",
		Action:   "コミュニティ一覧から選択し直してください。",
	}
}

// NewNotAMemberError はコミュニティ未参加のユーザーがチャットにアクセスした場合のエラーを生成する。
func NewNotAMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  "このコミュニティのメンバーではありません。",
		Category: "community",
		Action:   "コミュニティに参加してからチャットを開いてください。",
	}
}

// NewEmptyMessageError は空のメッセージを送信しようとした場合のエラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "メッセージが空です。",
		Category: "chat",
		Action:   "メッセージを入力してから送信してください。",
	}
}

// NewMessageTooLongError はメッセージが長すぎる場合のエラーを生成する。
func NewMessageTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodeMessageTooLong,
		Message:  fmt.Sprintf("メッセージは%d文字以内である必要があります。", MaxMessageLen),
		Category: "chat",
		Action:   "メッセージを短くしてください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。原因はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
