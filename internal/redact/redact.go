package redact

const visible = 4

// Token masks a credential for logging, keeping a short prefix to correlate log lines.
func Token(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 2*visible {
		return "[REDACTED_TOKEN]"
	}
	return token[:visible] + "…[REDACTED_TOKEN]"
}

