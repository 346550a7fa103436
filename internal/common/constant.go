// Package common contains shared constants and sentinel errors used across
// fieldkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// KeySeparator joins a logical id and a tenant id into a composite storage key.
const KeySeparator = "#"

// TimestampLayout is the ISO-8601 layout used for updatedAt values and watermarks.
const TimestampLayout = "2006-01-02T15:04:05.000Z"
