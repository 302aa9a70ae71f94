package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/tally/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Credentials reads and writes the remote database URL for one keyring account
type Credentials struct {
	service string
	account string
}

// New returns Credentials for account, or the default account when empty
func New(account string) *Credentials {
	if account == "" {
		account = constants.DefaultKeyringUser
	}
	return &Credentials{service: constants.AppName, account: account}
}

// RemoteURL retrieves the remote connection string.
// Returns ErrNotFound if nothing is stored.
func (c *Credentials) RemoteURL() (string, error) {
	url, err := keyring.Get(c.service, c.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return url, nil
}

// SetRemoteURL stores the remote connection string
func (c *Credentials) SetRemoteURL(url string) error {
	if url == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(c.service, c.account, url); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// Clear removes the stored connection string
func (c *Credentials) Clear() error {
	if err := keyring.Delete(c.service, c.account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// IsAvailable is a best-effort check that the OS keyring can be read
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
