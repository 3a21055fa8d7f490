// Package platform defines the chat-platform contracts and the
// multi-platform sender that fans operations out to every configured
// client. Rendering is platform-specific and lives in the per-platform
// subpackages.
package platform
