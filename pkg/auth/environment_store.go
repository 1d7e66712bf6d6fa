package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single read-only account from FRIENDBOT_* variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds the account from the environment. username, when given,
// must match FRIENDBOT_REDDIT_USERNAME.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := &Account{
		Username:     os.Getenv("FRIENDBOT_REDDIT_USERNAME"),
		Password:     os.Getenv("FRIENDBOT_REDDIT_PASSWORD"),
		ClientID:     os.Getenv("FRIENDBOT_REDDIT_CLIENT_ID"),
		ClientSecret: os.Getenv("FRIENDBOT_REDDIT_CLIENT_SECRET"),
		VisionAPIKey: os.Getenv("FRIENDBOT_VISION_API_KEY"),
		UserAgent:    os.Getenv("FRIENDBOT_USER_AGENT"),
		LastModified: time.Now(),
	}
	if account.Validate() != nil {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != account.Username {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns the environment account if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
