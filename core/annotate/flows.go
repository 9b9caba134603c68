package annotate

import (
	"sort"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FlowKind tells how a Flow was derived.
type FlowKind uint8

const (
	FlowEther  FlowKind = iota // CALL carrying value
	FlowToken                  // a decrease paired with an equal increase of one token
	FlowOrphan                 // a token balance change nothing paired with
)

var flowKindNames = [...]string{
	FlowEther:  "ETH_TRANSFER",
	FlowToken:  "TOKEN_TRANSFER",
	FlowOrphan: "BALANCE_CHANGE",
}

func (k FlowKind) String() string {
	if int(k) < len(flowKindNames) {
		return flowKindNames[k]
	}
	return "UNKNOWN"
}

// Site is a step that contributed to a flow. Block is the id of the block
// holding PC in the code run by Code, or -1 if it is not known.
type Site struct {
	Code  common.Address
	PC    uint64
	Block int
}

// Flow is one movement of value within a transaction.
type Flow struct {
	Order  int // 1-based position of the flow's first change
	Kind   FlowKind
	Token  common.Address // zero for ether
	From   common.Address // zero for an orphan increase
	To     common.Address // zero for an orphan decrease
	Amount *uint256.Int

	// Sites are the CALL of an ether transfer; the sender's SLOAD and
	// SSTORE then the receiver's for a token transfer; SLOAD and SSTORE of
	// an orphan.
	Sites []Site
}

// Flows merges transfers and balance changes, each in trace order, into the
// asset flow of a transaction. The first change of a token stays open until
// a later change of the same token moves the same amount the other way; the
// two become a FlowToken from the holder whose balance fell to the holder
// whose balance rose. Changes that pair with nothing are FlowOrphan. The
// result is sorted by Order.
func Flows(transfers []Transfer, changes []BalanceChange) []Flow {
	type pending struct {
		order  int
		change BalanceChange
	}
	var (
		flows    []Flow
		order    int
		open     = make(map[common.Address]pending)
		orphaned []pending
	)
	for ti, ci := 0, 0; ti < len(transfers) || ci < len(changes); {
		if ci == len(changes) || (ti < len(transfers) && transfers[ti].Index < changes[ci].Index) {
			t := transfers[ti]
			ti++
			order++
			flows = append(flows, Flow{
				Order:  order,
				Kind:   FlowEther,
				From:   t.From,
				To:     t.To,
				Amount: t.Value,
				Sites:  []Site{{Code: t.Code, PC: t.PC, Block: -1}},
			})
			continue
		}
		ch := changes[ci]
		ci++
		if ch.Amount == nil || ch.Amount.IsZero() {
			continue
		}
		prev, ok := open[ch.Contract]
		if !ok {
			order++
			open[ch.Contract] = pending{order, ch}
			continue
		}
		if prev.change.Increased != ch.Increased && prev.change.Amount.Eq(ch.Amount) {
			delete(open, ch.Contract)
			sender, receiver := prev.change, ch
			if sender.Increased {
				sender, receiver = receiver, sender
			}
			flows = append(flows, Flow{
				Order:  prev.order,
				Kind:   FlowToken,
				Token:  ch.Contract,
				From:   sender.Holder,
				To:     receiver.Holder,
				Amount: ch.Amount,
				Sites:  append(changeSites(sender), changeSites(receiver)...),
			})
			continue
		}
		order++
		orphaned = append(orphaned, pending{order, ch})
	}
	for _, p := range open {
		orphaned = append(orphaned, p)
	}
	for _, p := range orphaned {
		f := Flow{
			Order:  p.order,
			Kind:   FlowOrphan,
			Token:  p.change.Contract,
			Amount: p.change.Amount,
			Sites:  changeSites(p.change),
		}
		if p.change.Increased {
			f.To = p.change.Holder
		} else {
			f.From = p.change.Holder
		}
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Order < flows[j].Order })
	return flows
}

func changeSites(ch BalanceChange) []Site {
	return []Site{
		{Code: ch.LoadCode, PC: ch.LoadPC, Block: -1},
		{Code: ch.Code, PC: ch.StorePC, Block: -1},
	}
}

// LinkBlocks sets the Block of every site whose code blocks knows. blocks
// returns the segmentation of the code an address ran.
func LinkBlocks(flows []Flow, blocks func(common.Address) (*cfg.BlockSet, bool)) {
	for i := range flows {
		for j := range flows[i].Sites {
			site := &flows[i].Sites[j]
			bs, ok := blocks(site.Code)
			if !ok {
				continue
			}
			if b, ok := bs.BlockContaining(site.PC); ok {
				site.Block = b.ID
			}
		}
	}
}
