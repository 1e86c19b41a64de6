package feed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/devradar/internal/repository"
)

// 設定ストア上のソース別表示トグルのキー
const (
	settingKeySourceIThome  = "source_ithome"
	settingKeySourceThreads = "source_threads"
)

// SourceToggles はソース別の表示トグルの組を表す。
// 未設定のキーはどちらも有効として扱う。
type SourceToggles struct {
	IThome  bool
	Threads bool
}

// PreferenceLoader はページ取得のたびに最新のトグル状態を読むインターフェース。
type PreferenceLoader interface {
	SourceToggles(ctx context.Context) (SourceToggles, error)
}

// Preferences は設定ストアに永続化されたフィード設定のビュー。
type Preferences struct {
	settings repository.SettingsRepository
}

// NewPreferences はPreferencesを生成する。
func NewPreferences(settings repository.SettingsRepository) *Preferences {
	return &Preferences{settings: settings}
}

// SourceToggles は現在のソース別表示トグルを返す。未設定は有効扱い。
func (p *Preferences) SourceToggles(ctx context.Context) (SourceToggles, error) {
	ithome, err := p.getBool(ctx, settingKeySourceIThome)
	if err != nil {
		return SourceToggles{}, err
	}
	threads, err := p.getBool(ctx, settingKeySourceThreads)
	if err != nil {
		return SourceToggles{}, err
	}
	return SourceToggles{IThome: ithome, Threads: threads}, nil
}

// SetSourceIThome はiThomeソースの表示トグルを保存する。
func (p *Preferences) SetSourceIThome(ctx context.Context, enabled bool) error {
	return p.settings.Set(ctx, settingKeySourceIThome, strconv.FormatBool(enabled))
}

// SetSourceThreads はThreadsソースの表示トグルを保存する。
func (p *Preferences) SetSourceThreads(ctx context.Context, enabled bool) error {
	return p.settings.Set(ctx, settingKeySourceThreads, strconv.FormatBool(enabled))
}

func (p *Preferences) getBool(ctx context.Context, key string) (bool, error) {
	value, ok, err := p.settings.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("フィード設定の読み込みに失敗しました: %w", err)
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}
