// Package origin tells server-issued records apart from provisional ones
// created offline.
//
// Internally the distinction is a typed Origin value. At the storage boundary
// it is carried by a reserved id prefix, which must stay stable across the
// whole application:
//
//	local_     offline-created component/condition instance
//	localdef_  offline-created component definition
//	locond_    offline-created condition definition
package origin

import (
	"strings"

	"github.com/google/uuid"
)

// Origin classifies an id.
type Origin uint8

const (
	Global Origin = iota
	LocalInstance
	LocalComponentDef
	LocalConditionDef
)

const (
	LocalInstancePrefix     = "local_"
	LocalComponentDefPrefix = "localdef_"
	LocalConditionDefPrefix = "locond_"
)

func (o Origin) String() string {
	switch o {
	case LocalInstance:
		return "local_instance"
	case LocalComponentDef:
		return "local_component_def"
	case LocalConditionDef:
		return "local_condition_def"
	default:
		return "global"
	}
}

// Prefix is the reserved id prefix for o; empty for Global.
func (o Origin) Prefix() string {
	switch o {
	case LocalInstance:
		return LocalInstancePrefix
	case LocalComponentDef:
		return LocalComponentDefPrefix
	case LocalConditionDef:
		return LocalConditionDefPrefix
	default:
		return ""
	}
}

// Provisional reports whether o is one of the offline-created kinds.
func (o Origin) Provisional() bool { return o != Global }

// NewID returns a fresh id for o. Global ids are bare UUIDs.
func (o Origin) NewID() string {
	return o.Prefix() + uuid.NewString()
}

// Of parses the origin out of an id. The prefixes are disjoint, so checking
// order does not matter.
func Of(id string) Origin {
	switch {
	case strings.HasPrefix(id, LocalComponentDefPrefix):
		return LocalComponentDef
	case strings.HasPrefix(id, LocalConditionDefPrefix):
		return LocalConditionDef
	case strings.HasPrefix(id, LocalInstancePrefix):
		return LocalInstance
	default:
		return Global
	}
}

func IsLocalInstanceID(id string) bool     { return Of(id) == LocalInstance }
func IsLocalComponentDefID(id string) bool { return Of(id) == LocalComponentDef }
func IsLocalConditionDefID(id string) bool { return Of(id) == LocalConditionDef }

// IsProvisional reports whether id carries any reserved prefix.
func IsProvisional(id string) bool { return Of(id).Provisional() }
