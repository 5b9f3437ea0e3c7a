// Package log builds slog loggers that mask credentials before they are
// written.
//
// A harvest may be configured with a session cookie, an Authorization header
// or a proxy URL carrying a password. SecureHandler wraps any slog.Handler and
// replaces such values with MaskValue, both for plain attributes and for
// header maps logged as a whole:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request headers", "headers", cfg.Headers, "cookie", cfg.Cookie)
//
// Content digests logged under "hash" or "content_hash" are left intact.
package log
