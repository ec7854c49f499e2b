package model

import (
	"strings"
	"unicode/utf8"
)

// ValidateInterests は興味タグが1つ以上あり、すべてカタログに含まれるかを検証する。
func ValidateInterests(interests []string) error {
	if len(interests) == 0 {
		return NewNoInterestsError()
	}
	for _, tag := range interests {
		if !IsKnownInterest(tag) {
			return NewUnknownInterestError(tag)
		}
	}
	return nil
}

// ValidateUsername は前後の空白を除いたユーザー名の長さを検証し、正規化した値を返す。
func ValidateUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLen {
		return "", NewUsernameTooShortError()
	}
	if n > MaxUsernameLen {
		return "", NewUsernameTooLongError()
	}
	return name, nil
}

// ValidatePassword はパスワードの長さを検証する。
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return NewPasswordTooShortError()
	}
	return nil
}

// ValidateCommunityName は前後の空白を除いたコミュニティ名の長さを検証し、正規化した値を返す。
func ValidateCommunityName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < MinCommunityNameLen {
		return "", NewCommunityNameTooShortError()
	}
	return trimmed, nil
}

// ValidateMessageText は前後の空白を除いたメッセージ本文を検証し、正規化した値を返す。
func ValidateMessageText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", NewEmptyMessageError()
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLen {
		return "", NewMessageTooLongError()
	}
	return trimmed, nil
}
