// Package persist saves and restores whole analysis sessions. A session file
// is a versioned JSON envelope written atomically via a temp file and rename.
// Restore validates the entire envelope before anything touches the live
// session, and refuses files the caller has not explicitly trusted.
package persist
