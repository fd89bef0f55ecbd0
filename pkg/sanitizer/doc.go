// Package sanitizer normalizes free-form input before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input yields an empty value rather than an error,
// so the validator downstream reports it.
//
// Normalization includes:
//   - Strings: collapse inner whitespace, trim leading/trailing spaces
//   - Labels: whitespace-normalized and lowercased ("Deluxe  King" becomes "deluxe king")
//   - URLs: enforce a scheme, lowercase the host, drop tracking parameters,
//     keep path and query values as given
package sanitizer
