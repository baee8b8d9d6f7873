// Package biomes talks to the Biomes world contract: optional system hooks
// and delegation registration.
package biomes

import (
	_ "embed"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

//go:embed abi/IWorld.json
var worldABI []byte

// WorldABI returns the world contract functions this package calls.
func WorldABI() []byte { return worldABI }

// ResourceID is a MUD resource id: 2-byte type, 14-byte namespace, 16-byte
// name, each right-padded with zeros and truncated to fit.
type ResourceID [32]byte

const (
	TypeSystem    = "sy"
	TypeTable     = "tb"
	TypeNamespace = "ns"
)

func NewResourceID(typ, namespace, name string) ResourceID {
	var id ResourceID
	copy(id[0:2], typ)
	copy(id[2:16], namespace)
	copy(id[16:32], name)
	return id
}

// SystemID is the resource id of a root-namespace system.
func SystemID(name string) ResourceID {
	return NewResourceID(TypeSystem, "", name)
}

func (r ResourceID) Hex() string { return hexutil.Encode(r[:]) }

var (
	// UnlimitedDelegation is the delegation control granting every call.
	UnlimitedDelegation = SystemID("unlimited")
	// RegistrationSystem routes optional hook registration.
	RegistrationSystem = SystemID("ExtendedRegistrationSystem")
)

// DefaultHookSystems are the systems an experience hooks by default.
var DefaultHookSystems = []string{"MoveSystem", "HitSystem"}
