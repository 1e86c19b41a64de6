// Package realtime はサーバーからの非同期イベントを運ぶ永続接続チャンネルを提供する。
package realtime

import (
	"encoding/json"
	"strings"
)

// Kind はリアルタイムメッセージの種別を表す。
type Kind string

const (
	// KindNotification は通知一覧の再取得を促すイベント。
	KindNotification Kind = "notification"
	// KindCommentUpdate は特定記事のコメント再取得を促すイベント。
	KindCommentUpdate Kind = "comment_update"
	// KindUnknown は分類できなかったイベント。黙って破棄せず種別として扱う。
	KindUnknown Kind = "unknown"
)

// Message は受信フレームをデコードした閉じたエンベロープを表す。
// 生テキストの部分一致でディスパッチする代わりに、ディスパッチ前に
// この型へのデコードを必須とする。
type Message struct {
	Kind       Kind   `json:"kind"`
	ArticleURL string `json:"articleUrl"`
	Message    string `json:"message"`

	// Raw は受信フレームの原文。旧形式フレームの記事URL照合に使う。
	Raw string `json:"-"`
}

// 旧形式フレームが含む種別タグ
const (
	legacyNotificationTag  = "NOTIFICATION"
	legacyCommentUpdateTag = "COMMENT_UPDATE"
)

// ParseMessage は受信フレームをMessageにデコードする。
// まずJSONエンベロープとして解釈し、JSONでない場合は旧形式の
// タグ文字列による分類にフォールバックする。どちらでも分類できない
// フレームはKindUnknownとして返す（破棄はしない）。
func ParseMessage(raw []byte) Message {
	text := string(raw)

	var msg Message
	if err := json.Unmarshal(raw, &msg); err == nil {
		msg.Raw = text
		switch msg.Kind {
		case KindNotification, KindCommentUpdate:
			return msg
		}
		return Message{Kind: KindUnknown, Message: msg.Message, ArticleURL: msg.ArticleURL, Raw: text}
	}

	switch {
	case strings.Contains(text, legacyCommentUpdateTag):
		return Message{Kind: KindCommentUpdate, Raw: text}
	case strings.Contains(text, legacyNotificationTag):
		return Message{Kind: KindNotification, Raw: text}
	default:
		return Message{Kind: KindUnknown, Raw: text}
	}
}

// MatchesArticle はメッセージが指定記事URLに言及しているかを返す。
// エンベロープにURLがあれば完全一致、旧形式フレームは原文の部分一致で判定する。
func (m Message) MatchesArticle(articleURL string) bool {
	if articleURL == "" {
		return false
	}
	if m.ArticleURL != "" {
		return m.ArticleURL == articleURL
	}
	return strings.Contains(m.Raw, articleURL)
}
