// Package keys encodes and decodes tenant-scoped storage keys.
//
// A composite key is "<id>#<tenantID>". Only this package and the local cache
// know that format; the rest of the code works with logical ids.
//
// Decode splits on the first separator, so a logical id that itself contains
// "#" does not survive a round trip. New ids are checked with ValidateID to
// keep that from happening.
package keys

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
)

// Encode returns the composite key for id within tenantID.
// ok is false when tenantID is empty: a composite key is never made up
// without a real tenant, so personal data cannot pass for tenant data.
func Encode(id, tenantID string) (key string, ok bool) {
	if tenantID == "" {
		return "", false
	}
	return id + common.KeySeparator + tenantID, true
}

// Decode returns the logical id: everything before the first separator.
// Input without a separator is returned unchanged.
func Decode(compositeID string) string {
	if i := strings.Index(compositeID, common.KeySeparator); i >= 0 {
		return compositeID[:i]
	}
	return compositeID
}

// Tenant returns the tenant part of a composite key.
func Tenant(compositeID string) (string, bool) {
	i := strings.Index(compositeID, common.KeySeparator)
	if i < 0 {
		return "", false
	}
	return compositeID[i+len(common.KeySeparator):], true
}

// CacheKey is the storage key for id: the composite key when a tenant is
// active, the bare id in personal mode.
func CacheKey(id, tenantID string) string {
	if key, ok := Encode(id, tenantID); ok {
		return key
	}
	return id
}

// ValidateID rejects ids that cannot be stored safely.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", common.ErrValidation)
	}
	if strings.Contains(id, common.KeySeparator) {
		return fmt.Errorf("%w: id %q contains reserved separator %q", common.ErrValidation, id, common.KeySeparator)
	}
	return nil
}
