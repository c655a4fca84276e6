package redis

import "strings"

// Every key lives under the "wb" namespace, then a purpose segment.
const namespace = "wb"

func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return key("session", "access", accessID)
}

func (c *Client) CacheKey(scope string, parts ...string) string {
	return key(append([]string{"cache", scope}, parts...)...)
}

func (c *Client) LockKey(name string) string {
	return key("lock", name)
}

// key joins non-empty parts with ':' after the namespace.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
