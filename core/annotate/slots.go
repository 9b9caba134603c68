package annotate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SlotMap resolves a storage slot of a contract to the account it belongs
// to, e.g. the holder whose token balance lives there. A missing entry only
// means a write stays unattributed.
type SlotMap interface {
	SlotToAddress(contract common.Address, slot common.Hash) (common.Address, bool)
}

type slotKey struct {
	contract common.Address
	slot     common.Hash
}

// Slots is an in-memory SlotMap.
type Slots map[slotKey]common.Address

func NewSlots() Slots { return make(Slots) }

func (s Slots) Add(contract common.Address, slot common.Hash, holder common.Address) {
	s[slotKey{contract, slot}] = holder
}

func (s Slots) SlotToAddress(contract common.Address, slot common.Hash) (common.Address, bool) {
	holder, ok := s[slotKey{contract, slot}]
	return holder, ok
}

// AddMapping registers the entries of a Solidity mapping(address => ...)
// declared at base for each holder.
func (s Slots) AddMapping(contract common.Address, base common.Hash, holders ...common.Address) {
	for _, h := range holders {
		s.Add(contract, MappingSlot(h, base), h)
	}
}

// MappingSlot returns the storage slot of key in a Solidity mapping whose
// declaration occupies slot base: keccak256(pad32(key) ++ base).
func MappingSlot(key common.Address, base common.Hash) common.Hash {
	return crypto.Keccak256Hash(common.LeftPadBytes(key.Bytes(), 32), base.Bytes())
}

type noSlots struct{}

func (noSlots) SlotToAddress(common.Address, common.Hash) (common.Address, bool) {
	return common.Address{}, false
}

// NoSlots resolves nothing.
var NoSlots SlotMap = noSlots{}
