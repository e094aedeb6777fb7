// Package session persists what was learned about a target, so that a later
// run can resume it instead of rediscovering it.
package session

import "context"

// Key names a value stored for a target.
type Key string

// Well-known keys.
const (
	KeyAbsFilePaths        Key = "KB_ABS_FILE_PATHS"
	KeyChars               Key = "KB_CHARS"
	KeyDynamicMarkings     Key = "KB_DYNAMIC_MARKINGS"
	KeyBruteTables         Key = "KB_BRUTE_TABLES"
	KeyBruteColumns        Key = "KB_BRUTE_COLUMNS"
	KeyXPCmdshellAvailable Key = "KB_XP_CMDSHELL_AVAILABLE"
	KeyInjections          Key = "KB_INJECTIONS"
	KeyTmpPath             Key = "CONF_TMP_PATH"
	KeyDBMS                Key = "DBMS"
	KeyOS                  Key = "OS"
)

// Store is a key-value store scoped to one target.
type Store interface {
	// Retrieve decodes the value stored under key into v. It reports false,
	// with a nil error, when the key is absent.
	Retrieve(ctx context.Context, key Key, v any) (bool, error)

	// Write stores v under key, replacing any previous value.
	Write(ctx context.Context, key Key, v any) error

	Close() error
}
