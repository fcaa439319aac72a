package common

// File permission constants shared across the application.
const (
	// FilePermissionSecure is for sensitive files: credentials, keys.
	FilePermissionSecure = 0600

	// FilePermissionNormal is for ordinary files: rules, exports, config.
	FilePermissionNormal = 0644

	// DirPermissionSecure is for directories holding sensitive files.
	DirPermissionSecure = 0700

	// DirPermissionNormal is for ordinary directories.
	DirPermissionNormal = 0755
)
