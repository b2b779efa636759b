package tcapi

import (
	"strconv"

	"github.com/serum-errors/go-serum"
)

// Error is the interface all errors crossing a component boundary in this
// module satisfy. It is serum's error interface: a stable code string
// plus structured details.
type Error = serum.ErrorInterface

const (
	ECodeIo               = "tabcat-error-io"
	ECodeSerialization    = "tabcat-error-serialization"
	ECodeChecksumMismatch = "tabcat-error-checksum-mismatch"
	ECodeIntegrity        = "tabcat-error-integrity"
	ECodeNotFound         = "tabcat-error-not-found"
	ECodeAlreadyExists    = "tabcat-error-already-exists"
	ECodeUpdateRequired   = "tabcat-error-update-required"
	ECodeValidation       = "tabcat-error-validation"
	ECodeUpload           = "tabcat-error-upload"
	ECodeUnknown          = "tabcat-error-unknown"
)

// ErrorIo wraps generic I/O errors from the Go stdlib.
//
// Errors:
//
//    - tabcat-error-io --
func ErrorIo(context string, path string, cause error) error {
	result := serum.Errorf(ECodeIo, "io error: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}, {"path", path}})
	return result
}

// ErrorSerialization is returned when encoding or decoding of a sidecar,
// index, or columnar file fails.
//
// Errors:
//
//    - tabcat-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(ECodeSerialization, "serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}})
	return result
}

// ErrorChecksumMismatch is returned when a file's digest does not match
// the recorded checksum. The file in question has already been removed
// from the cache by the time this error is returned; callers may retry.
//
// Errors:
//
//    - tabcat-error-checksum-mismatch --
func ErrorChecksumMismatch(path string, expected string, actual string) error {
	return serum.Error(ECodeChecksumMismatch,
		serum.WithMessageTemplate("checksum mismatch for {{path|q}}: expected {{expected}}, got {{actual}}"),
		serum.WithDetail("path", path),
		serum.WithDetail("expected", expected),
		serum.WithDetail("actual", actual),
	)
}

// ErrorIntegrity is returned for corruption that is not a plain checksum
// mismatch: a sidecar that does not parse, a primary key that is not
// unique, an index row that violates the catalog's invariants.
//
// Errors:
//
//    - tabcat-error-integrity --
func ErrorIntegrity(path string, reason string) error {
	return serum.Error(ECodeIntegrity,
		serum.WithMessageTemplate("integrity error at {{path|q}}: {{reason}}"),
		serum.WithDetail("path", path),
		serum.WithDetail("reason", reason),
	)
}

// ErrorNotFound is returned when a table, dataset, or catalog entry does
// not exist. Distinct from integrity errors: the remediation is to
// reindex or adjust the query, not to re-download.
//
// Errors:
//
//    - tabcat-error-not-found --
func ErrorNotFound(what string, where string) error {
	return serum.Error(ECodeNotFound,
		serum.WithMessageTemplate("{{what}} not found at {{where|q}}"),
		serum.WithDetail("what", what),
		serum.WithDetail("where", where),
	)
}

// ErrorAlreadyExists is returned when creating something that is already
// present and overwrite was not requested.
//
// Errors:
//
//    - tabcat-error-already-exists --
func ErrorAlreadyExists(what string, path string) error {
	return serum.Error(ECodeAlreadyExists,
		serum.WithMessageTemplate("{{what}} already exists at {{path|q}}"),
		serum.WithDetail("what", what),
		serum.WithDetail("path", path),
	)
}

// ErrorUpdateRequired is returned when a catalog index declares a format
// version newer than this package supports. No partial read is attempted.
//
// Errors:
//
//    - tabcat-error-update-required --
func ErrorUpdateRequired(found int, supported int) error {
	return serum.Error(ECodeUpdateRequired,
		serum.WithMessageTemplate("catalog format version {{found}} is newer than supported version {{supported}}; update this package to read it"),
		serum.WithDetail("found", strconv.Itoa(found)),
		serum.WithDetail("supported", strconv.Itoa(supported)),
	)
}

// ErrorValidation is returned before any write occurs, when inputs to an
// operation are inconsistent. The caller must format the message string.
//
// Errors:
//
//    - tabcat-error-validation --
func ErrorValidation(message string, deets ...[2]string) error {
	opts := make([]serum.WithConstruction, 0, len(deets)+1)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	opts = append(opts, serum.WithMessageLiteral(message))
	return serum.Error(ECodeValidation, opts...)
}

// ErrorUnnamedColumn is returned when a column is added without a name.
//
// Errors:
//
//    - tabcat-error-validation --
func ErrorUnnamedColumn() error {
	return serum.Error(ECodeValidation,
		serum.WithMessageLiteral("cannot add a column without a name"),
		serum.WithDetail("reason", "unnamed-column"),
	)
}

// ErrorAmbiguousIndex is returned when a primary key cannot be
// established because the key columns do not uniquely identify rows,
// or when a save requires a verifiable key and none is set.
//
// Errors:
//
//    - tabcat-error-validation --
func ErrorAmbiguousIndex(reason string) error {
	return serum.Error(ECodeValidation,
		serum.WithMessageTemplate("ambiguous index: {{why}}"),
		serum.WithDetail("why", reason),
		serum.WithDetail("reason", "ambiguous-index"),
	)
}

// ErrorEmptyTable is returned when saving a table with no columns, which
// would produce an unreadable columnar file.
//
// Errors:
//
//    - tabcat-error-validation --
func ErrorEmptyTable(path string) error {
	return serum.Error(ECodeValidation,
		serum.WithMessageTemplate("refusing to save empty table to {{path|q}}"),
		serum.WithDetail("path", path),
		serum.WithDetail("reason", "empty-table"),
	)
}

// ErrorUpload is returned when copying a local file to object storage
// fails. The transport error is wrapped; uploads are not retried
// automatically.
//
// Errors:
//
//    - tabcat-error-upload --
func ErrorUpload(dest string, cause error) error {
	result := serum.Errorf(ECodeUpload, "upload to %q failed: %w", dest, cause)
	addDetails(result, [][2]string{{"dest", dest}})
	return result
}

// ErrorUnknown is returned when an unknown error occurs.
//
// Errors:
//
//    - tabcat-error-unknown --
func ErrorUnknown(msgTmpl string, cause error) error {
	return serum.Errorf(ECodeUnknown, "%s: %w", msgTmpl, cause)
}

// addDetails is a helper to get around the fact that doing a type
// coercion within an exported function is not currently allowed by serum.
// We won't need this if serum supports an equivalent to %w in message
// templates OR supports adding details when using serum.Errorf.
func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}
