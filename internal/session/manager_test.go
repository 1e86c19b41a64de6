package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/devradar/internal/database"
	"github.com/hitoshi/devradar/internal/model"
	"github.com/hitoshi/devradar/internal/repository"
)

func newTestManager(t *testing.T) (*Manager, repository.SettingsRepository, repository.FavoriteRepository) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repository.NewSQLiteUserRepo(db)
	settings := repository.NewSQLiteSettingsRepo(db)
	favorites := repository.NewSQLiteFavoriteRepo(db)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewManager(users, settings, logger), settings, favorites
}

// TestEnsureGuestID_GeneratesNegativeAndPersists はゲストIDが負の値で生成され
// 設定テーブルに永続化されることを検証する。
func TestEnsureGuestID_GeneratesNegativeAndPersists(t *testing.T) {
	m, settings, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.EnsureGuestID(ctx)
	if err != nil {
		t.Fatalf("EnsureGuestID returned error: %v", err)
	}
	if id >= 0 {
		t.Errorf("guest id = %d, want negative", id)
	}
	if id < -1_000_000 {
		t.Errorf("guest id = %d, want >= -1000000", id)
	}

	stored, ok, err := settings.Get(ctx, "guest_id")
	if err != nil || !ok {
		t.Fatalf("settings.Get = (%q, %v, %v), want persisted value", stored, ok, err)
	}

	// 同一プロセス内の再呼び出しは同じIDを返す
	again, err := m.EnsureGuestID(ctx)
	if err != nil {
		t.Fatalf("EnsureGuestID returned error: %v", err)
	}
	if again != id {
		t.Errorf("second EnsureGuestID = %d, want %d", again, id)
	}
}

// TestEnsureGuestID_ReusesPersistedValue は保存済みゲストIDが再利用されることを検証する
// （プロセス再起動相当）。
func TestEnsureGuestID_ReusesPersistedValue(t *testing.T) {
	m, settings, _ := newTestManager(t)
	ctx := context.Background()

	if err := settings.Set(ctx, "guest_id", "-42"); err != nil {
		t.Fatalf("settings.Set returned error: %v", err)
	}

	id, err := m.EnsureGuestID(ctx)
	if err != nil {
		t.Fatalf("EnsureGuestID returned error: %v", err)
	}
	if id != -42 {
		t.Errorf("guest id = %d, want -42 (persisted value)", id)
	}
}

// TestEnsureGuestID_RegeneratesOnCorruptValue は不正な保存値が再生成されることを検証する。
func TestEnsureGuestID_RegeneratesOnCorruptValue(t *testing.T) {
	m, settings, _ := newTestManager(t)
	ctx := context.Background()

	if err := settings.Set(ctx, "guest_id", "not-a-number"); err != nil {
		t.Fatalf("settings.Set returned error: %v", err)
	}

	id, err := m.EnsureGuestID(ctx)
	if err != nil {
		t.Fatalf("EnsureGuestID returned error: %v", err)
	}
	if id >= 0 {
		t.Errorf("guest id = %d, want negative", id)
	}

	stored, _, err := settings.Get(ctx, "guest_id")
	if err != nil {
		t.Fatalf("settings.Get returned error: %v", err)
	}
	if stored == "not-a-number" {
		t.Error("corrupt value was not replaced")
	}
}

// TestActorID_SwitchesBetweenGuestAndUser はサインイン・サインアウトで
// アクターIDが切り替わることを検証する。
func TestActorID_SwitchesBetweenGuestAndUser(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	guestID, err := m.EnsureGuestID(ctx)
	if err != nil {
		t.Fatalf("EnsureGuestID returned error: %v", err)
	}
	if got := m.ActorID(); got != guestID {
		t.Errorf("ActorID = %d, want guest %d", got, guestID)
	}
	if m.CurrentUser() != nil {
		t.Error("CurrentUser != nil before sign-in")
	}

	if err := m.SignIn(ctx, model.User{ID: 7, Name: "taro"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if got := m.ActorID(); got != 7 {
		t.Errorf("ActorID = %d, want 7", got)
	}
	user := m.CurrentUser()
	if user == nil || user.ID != 7 {
		t.Fatalf("CurrentUser = %v, want user 7", user)
	}

	m.SignOut()
	if got := m.ActorID(); got != guestID {
		t.Errorf("ActorID after sign-out = %d, want guest %d", got, guestID)
	}
	if m.CurrentUser() != nil {
		t.Error("CurrentUser != nil after sign-out")
	}
}

// TestSignIn_ReusesLocalProfile は既存のローカルプロフィールが再利用されることを検証する。
func TestSignIn_ReusesLocalProfile(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.SignIn(ctx, model.User{ID: 7, Name: "taro", Email: "taro@example.com"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	m.SignOut()

	// 2回目のサインインはCreateせずローカルの値を使う
	if err := m.SignIn(ctx, model.User{ID: 7, Name: "different"}); err != nil {
		t.Fatalf("second SignIn returned error: %v", err)
	}
	user := m.CurrentUser()
	if user == nil || user.Email != "taro@example.com" {
		t.Errorf("CurrentUser = %v, want locally stored profile", user)
	}
}

// TestDeleteAccount_CascadesFavorites はアカウント削除でお気に入りが
// 巻き添え削除されゲストに戻ることを検証する。
func TestDeleteAccount_CascadesFavorites(t *testing.T) {
	m, _, favorites := newTestManager(t)
	ctx := context.Background()

	if err := m.SignIn(ctx, model.User{ID: 7, Name: "taro"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	record := model.NewFavoriteRecord(7, model.Article{URL: "https://example.com/1", Title: "t"})
	if err := favorites.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := m.DeleteAccount(ctx); err != nil {
		t.Fatalf("DeleteAccount returned error: %v", err)
	}

	if m.CurrentUser() != nil {
		t.Error("CurrentUser != nil after account deletion")
	}
	left, err := favorites.ListByUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("favorites after deletion = %d, want 0", len(left))
	}
}

// TestUpdateAvatarURL_ReflectsStoreAndSession はアバター更新がローカルストアと
// セッション状態の両方に反映されることを検証する。
func TestUpdateAvatarURL_ReflectsStoreAndSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.SignIn(ctx, model.User{ID: 7, Name: "taro"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if err := m.UpdateAvatarURL(ctx, "https://cdn.example.com/a.png"); err != nil {
		t.Fatalf("UpdateAvatarURL returned error: %v", err)
	}
	if got := m.CurrentUser().AvatarURL; got != "https://cdn.example.com/a.png" {
		t.Errorf("session AvatarURL = %q, want updated value", got)
	}

	// サインインし直してもローカルストアの値が残っている
	m.SignOut()
	if err := m.SignIn(ctx, model.User{ID: 7, Name: "taro"}); err != nil {
		t.Fatalf("second SignIn returned error: %v", err)
	}
	if got := m.CurrentUser().AvatarURL; got != "https://cdn.example.com/a.png" {
		t.Errorf("stored AvatarURL = %q, want updated value", got)
	}
}

// TestUpdateAvatarURL_GuestIsRejected はゲストセッションでのアバター更新が
// ErrNotSignedInになることを検証する。
func TestUpdateAvatarURL_GuestIsRejected(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.UpdateAvatarURL(context.Background(), "https://cdn.example.com/a.png")
	if !errors.Is(err, model.ErrNotSignedIn) {
		t.Errorf("error = %v, want ErrNotSignedIn", err)
	}
}

// TestDeleteAccount_GuestIsRejected はゲストセッションでの削除要求が
// ErrNotSignedInになることを検証する。
func TestDeleteAccount_GuestIsRejected(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.DeleteAccount(context.Background())
	if !errors.Is(err, model.ErrNotSignedIn) {
		t.Errorf("error = %v, want ErrNotSignedIn", err)
	}
}
