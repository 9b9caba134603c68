package annotate

import (
	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Transfer is a CALL that moved a non-zero amount of wei.
type Transfer struct {
	Index int
	PC    uint64
	Code  common.Address // code that executed the CALL
	From  common.Address // account paying, the caller's storage context
	To    common.Address
	Value *uint256.Int
}

// StorageWrite is an SSTORE, attributed to a holder when the slot map knows
// the slot.
type StorageWrite struct {
	Index     int
	PC        uint64
	Contract  common.Address // storage context written to
	Slot      common.Hash
	Value     *uint256.Int
	Holder    common.Address
	HasHolder bool
}

// Actions extracts the value transfers and storage writes of an attributed
// trace, in trace order. slots may be nil.
func Actions(steps []trace.Step, slots SlotMap) ([]Transfer, []StorageWrite) {
	if slots == nil {
		slots = NoSlots
	}
	var (
		transfers []Transfer
		writes    []StorageWrite
	)
	for i := range steps {
		st := &steps[i]
		switch {
		case st.Op == cfg.CALL:
			value, ok := st.CallValue()
			if !ok || value.IsZero() {
				continue
			}
			to, _ := st.CallTarget()
			transfers = append(transfers, Transfer{
				Index: st.Index, PC: st.PC, Code: st.Address,
				From: st.Storage, To: to, Value: value,
			})
		case st.Op == cfg.SSTORE:
			slot, ok := st.StorageSlot()
			if !ok {
				continue
			}
			value, _ := st.StoredValue()
			w := StorageWrite{Index: st.Index, PC: st.PC, Contract: st.Storage, Slot: slot, Value: value}
			w.Holder, w.HasHolder = slots.SlotToAddress(st.Storage, slot)
			writes = append(writes, w)
		}
	}
	return transfers, writes
}

// BalanceChange pairs the read of a holder's slot with the following write
// to it.
type BalanceChange struct {
	Index     int            // trace index of the SSTORE
	Contract  common.Address // token, the storage context of the slot
	Code      common.Address // code that executed the SSTORE
	LoadCode  common.Address // code that executed the SLOAD
	Holder    common.Address
	Slot      common.Hash
	LoadPC    uint64
	StorePC   uint64
	Before    *uint256.Int
	After     *uint256.Int
	Increased bool         // After >= Before
	Amount    *uint256.Int // |After - Before|
}

// BalanceChanges reports, per holder slot known to slots, each SLOAD that is
// followed by an SSTORE of the same slot in the same storage context. The
// value loaded is taken from the top of the stack at the next step.
func BalanceChanges(steps []trace.Step, slots SlotMap) []BalanceChange {
	type pending struct {
		pc    uint64
		code  common.Address
		value *uint256.Int
	}
	if slots == nil {
		return nil
	}
	var (
		changes []BalanceChange
		loads   = make(map[slotKey]pending)
	)
	for i := range steps {
		st := &steps[i]
		if st.Op != cfg.SLOAD && st.Op != cfg.SSTORE {
			continue
		}
		slot, ok := st.StorageSlot()
		if !ok {
			continue
		}
		holder, ok := slots.SlotToAddress(st.Storage, slot)
		if !ok {
			continue
		}
		key := slotKey{st.Storage, slot}
		if st.Op == cfg.SLOAD {
			if i+1 < len(steps) {
				if v := steps[i+1].StackBack(0); v != nil {
					loads[key] = pending{pc: st.PC, code: st.Address, value: new(uint256.Int).Set(v)}
				}
			}
			continue
		}
		load, ok := loads[key]
		if !ok {
			continue
		}
		delete(loads, key)
		after, ok := st.StoredValue()
		if !ok {
			continue
		}
		ch := BalanceChange{
			Index:    st.Index,
			Contract: st.Storage,
			Code:     st.Address,
			LoadCode: load.code,
			Holder:   holder,
			Slot:     slot,
			LoadPC:   load.pc,
			StorePC:  st.PC,
			Before:   load.value,
			After:    after,
		}
		if after.Cmp(load.value) >= 0 {
			ch.Increased = true
			ch.Amount = new(uint256.Int).Sub(after, load.value)
		} else {
			ch.Amount = new(uint256.Int).Sub(load.value, after)
		}
		changes = append(changes, ch)
	}
	return changes
}
