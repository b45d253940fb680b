package rate

import "strings"

func (l *Limiter) loginEmailKey(email string) string {
	return l.config.Prefix + ":" + strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + "i:" + ip
}
