// Package notifications delivers push notifications about pipeline runs via
// ntfy. When no topic is configured every notification is a silent no-op.
package notifications
