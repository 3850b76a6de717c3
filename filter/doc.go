// Package filter provides row filters that work on raw stored rows.
//
// Filters locate individual field frames through the row's bitmask and never
// decode the full entry. A frame that cannot be located because the value
// blob is inconsistent with the bitmask is reported as
// model.ErrMalformedValue.
package filter
