package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"friendbot/pkg/config"

	"github.com/zalando/go-keyring"
)

func testAccount(name string) *Account {
	return &Account{
		Username:     name,
		Password:     "hunter2-password",
		ClientID:     "client-id-1234",
		ClientSecret: "client-secret-5678",
		VisionAPIKey: "AIzaSyVisionKey0000",
		UserAgent:    "friendbot-test/1.0",
	}
}

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := testAccount("edenszerofriendbot")
	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("edenszerofriendbot")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Password != account.Password || retrieved.ClientSecret != account.ClientSecret {
		t.Errorf("Retrieved secrets do not match: %+v", retrieved)
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) != 1 {
		t.Errorf("Expected one account, got %d (%v)", len(accounts), err)
	}

	if err := manager.Delete("edenszerofriendbot"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("edenszerofriendbot"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		account *Account
	}{
		{"nil", nil},
		{"no username", &Account{Password: "p", ClientID: "i", ClientSecret: "s"}},
		{"no password", &Account{Username: "u", ClientID: "i", ClientSecret: "s"}},
		{"no client", &Account{Username: "u", Password: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := manager.Store(tt.account); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = ErrStoreUnavailable
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	if err := manager.Store(testAccount("bot")); err != nil {
		t.Fatalf("Expected fallback store to accept account: %v", err)
	}
	if !working.Exists("bot") {
		t.Error("Account should be in the fallback store")
	}
}

func TestManagerListNewestWins(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()

	a := testAccount("bot")
	a.LastModified = time.Now().Add(-time.Hour)
	a.VisionAPIKey = "old-key"
	older.Store(a)

	b := testAccount("bot")
	b.LastModified = time.Now()
	b.VisionAPIKey = "new-key"
	newer.Store(b)
	newer.Store(testAccount("another"))

	accounts, err := NewManagerWithStores(older, newer).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "another" || accounts[1].VisionAPIKey != "new-key" {
		t.Errorf("Unexpected list: %s, %s", accounts[0].Username, accounts[1].VisionAPIKey)
	}
}

func TestSanitizeAccount(t *testing.T) {
	account := testAccount("bot")
	sanitized := SanitizeAccount(account)

	if sanitized.Password == account.Password || sanitized.ClientSecret == account.ClientSecret {
		t.Error("Secrets should be masked")
	}
	if sanitized.VisionAPIKey != "AIza...0000" {
		t.Errorf("Unexpected masked key %q", sanitized.VisionAPIKey)
	}
	if sanitized.Username != account.Username || sanitized.ClientID != account.ClientID {
		t.Error("Non-secret fields should be kept")
	}
	if SanitizeAccount(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestAccountApply(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reddit.Username = "configured"

	testAccount("stored").Apply(cfg)

	if cfg.Reddit.Username != "configured" {
		t.Errorf("Configured username should win, got %s", cfg.Reddit.Username)
	}
	if cfg.Reddit.Password != "hunter2-password" || cfg.Vision.APIKey != "AIzaSyVisionKey0000" {
		t.Error("Missing credentials should be filled from the account")
	}
	if cfg.Reddit.UserAgent != "friendbot-test/1.0" {
		t.Errorf("Default user agent should be replaced, got %s", cfg.Reddit.UserAgent)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path, "test_passphrase_123")
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if err := store.Store(testAccount("one")); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}
	if err := store.Store(testAccount("two")); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "hunter2-password") {
		t.Error("Password must not appear in plaintext")
	}

	// a second store with the same passphrase reads the vault
	reopened, _ := NewEncryptedFileStore(path, "test_passphrase_123")
	got, err := reopened.Retrieve("two")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if got.ClientSecret != "client-secret-5678" {
		t.Errorf("ClientSecret mismatch after decrypt: %s", got.ClientSecret)
	}

	wrong, _ := NewEncryptedFileStore(path, "wrong")
	if _, err := wrong.Retrieve("two"); err == nil {
		t.Error("Expected error with wrong passphrase")
	}

	if err := store.Delete("one"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := store.Delete("one"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := store.Delete("two"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Vault should be removed with the last account")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv("FRIENDBOT_PASSPHRASE", "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(testAccount("bot")); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Passphrase file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Passphrase file mode = %v", info.Mode().Perm())
	}

	again, _ := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	if !again.Exists("bot") {
		t.Error("Store should reuse the generated passphrase")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Mock keyring should be available: %v", err)
	}

	store.Store(testAccount("b-bot"))
	store.Store(testAccount("a-bot"))
	store.Store(testAccount("a-bot"))

	accounts, _ := store.List()
	if len(accounts) != 2 || accounts[0].Username != "a-bot" {
		t.Fatalf("Unexpected accounts: %v", accounts)
	}

	if err := store.Delete("a-bot"); err != nil {
		t.Fatal(err)
	}
	if store.Exists("a-bot") {
		t.Error("Deleted account still exists")
	}
	if err := store.Delete("a-bot"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	accounts, _ = store.List()
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account left, got %d", len(accounts))
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("FRIENDBOT_REDDIT_USERNAME", "envbot")
	t.Setenv("FRIENDBOT_REDDIT_PASSWORD", "pw")
	t.Setenv("FRIENDBOT_REDDIT_CLIENT_ID", "id")
	t.Setenv("FRIENDBOT_REDDIT_CLIENT_SECRET", "")

	store := NewEnvironmentStore()
	if store.Exists("") {
		t.Error("Incomplete environment should not yield an account")
	}

	t.Setenv("FRIENDBOT_REDDIT_CLIENT_SECRET", "secret")
	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Expected environment account: %v", err)
	}
	if account.Username != "envbot" {
		t.Errorf("Username = %s", account.Username)
	}
	if _, err := store.Retrieve("someone-else"); err == nil {
		t.Error("Expected mismatch error for other username")
	}
	if err := store.Store(account); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}

	manager := NewManagerWithStores(NewMockStore(), store)
	def, err := manager.RetrieveDefault()
	if err != nil || def.Username != "envbot" {
		t.Errorf("RetrieveDefault should prefer the environment, got %v, %v", def, err)
	}
}
