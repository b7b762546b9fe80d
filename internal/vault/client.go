// Package vault retrieves database credentials from HashiCorp Vault so
// deployments do not carry connection strings in their environment.
package vault

import (
	"context"
	"fmt"
	"net/url"

	vaultapi "github.com/hashicorp/vault/api"
)

// Client wraps a Vault API client scoped to a single secret path.
type Client struct {
	api  *vaultapi.Client
	path string
}

// New builds a Client for the given Vault address, token and secret path.
func New(addr, token, path string) (*Client, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr

	api, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	api.SetToken(token)

	return &Client{api: api, path: path}, nil
}

// DatabaseURL reads the configured secret and assembles a PostgreSQL
// connection URL from its fields. The secret must carry username,
// password, host, port and dbname; sslmode is optional.
func (c *Client) DatabaseURL(ctx context.Context) (string, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, c.path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", c.path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault read %s: secret not found", c.path)
	}

	fields := secretFields(secret.Data)
	return buildDatabaseURL(fields)
}

// secretFields flattens a KV response into string fields. KV v2 nests
// the payload under a "data" key; KV v1 returns it directly.
func secretFields(data map[string]interface{}) map[string]string {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	fields := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

// buildDatabaseURL assembles a postgres:// URL from secret fields.
func buildDatabaseURL(fields map[string]string) (string, error) {
	for _, key := range []string{"username", "password", "host", "port", "dbname"} {
		if fields[key] == "" {
			return "", fmt.Errorf("vault secret missing field %q", key)
		}
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(fields["username"], fields["password"]),
		Host:   fmt.Sprintf("%s:%s", fields["host"], fields["port"]),
		Path:   "/" + fields["dbname"],
	}
	if sslmode := fields["sslmode"]; sslmode != "" {
		q := url.Values{}
		q.Set("sslmode", sslmode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
