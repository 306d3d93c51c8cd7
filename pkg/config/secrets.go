package config

import (
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringPrefix = "keyring:"

// resolveSecretRefs replaces "keyring:<service>/<user>" credential values with
// the secret stored in the OS keyring.
func resolveSecretRefs(cfg *Config) error {
	if cfg == nil || cfg.Channels.Instagram == nil {
		return nil
	}

	ig := cfg.Channels.Instagram
	fields := []struct {
		name  string
		value *string
	}{
		{name: "channels.instagram.verify", value: &ig.Verify},
		{name: "channels.instagram.secret", value: &ig.Secret},
		{name: "channels.instagram.page-access-token", value: &ig.PageAccessToken},
	}

	for _, field := range fields {
		resolved, err := resolveSecret(*field.value)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", field.name, err)
		}
		*field.value = resolved
	}

	return nil
}

func resolveSecret(value string) (string, error) {
	ref, ok := strings.CutPrefix(strings.TrimSpace(value), keyringPrefix)
	if !ok {
		return value, nil
	}

	service, user, ok := strings.Cut(ref, "/")
	if !ok || service == "" || user == "" {
		return "", fmt.Errorf("keyring reference %q must look like keyring:<service>/<user>", value)
	}

	secret, err := keyring.Get(service, user)
	if err != nil {
		return "", fmt.Errorf("read keyring %s/%s: %w", service, user, err)
	}

	return secret, nil
}
