package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const keyringService = "aiodb"

// SaveConnection stores conn in cfg and writes it to path. The password,
// if any, goes to the OS keyring under the connection name.
func SaveConnection(path string, cfg *Config, conn Connection) error {
	if conn.Name == "" {
		return errors.New("save connection: name is required")
	}
	if conn.Password != "" {
		if err := keyring.Set(keyringService, conn.Name, conn.Password); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
	}

	conn.Password = ""
	cfg.AddConnection(conn)
	return Save(path, cfg)
}

// ResolvePassword fills conn.Password from the keyring when it is empty.
// A missing entry, or a host without a usable keyring, leaves it empty.
func ResolvePassword(conn *Connection) error {
	if conn.Password != "" || conn.Name == "" {
		return nil
	}
	pw, err := keyring.Get(keyringService, conn.Name)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("keyring unavailable, connecting without a stored password",
				"connection", conn.Name, "error", err)
		}
		return nil
	}
	conn.Password = pw
	return nil
}

// ForgetPassword removes the stored password of the named connection.
func ForgetPassword(name string) error {
	err := keyring.Delete(keyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete password: %w", err)
	}
	return nil
}
