// Package ledger simulates a remote account store.
//
// The ledger answers fetches (with configurable latency and injected
// failures) and publishes a ChangeEvent through a notify.Hub whenever an
// account changes, unless pushes are being dropped to model a lost
// notification.
package ledger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Account is the state of one ledger account.
type Account struct {
	Address string `cbor:"1,keyasint"`
	Balance uint64 `cbor:"2,keyasint"`
	Slot    uint64 `cbor:"3,keyasint"`
}

// ChangeEvent is the raw notification published when an account changes.
type ChangeEvent struct {
	Address string
	Slot    uint64

	// Data is the CBOR-encoded account.
	Data []byte
}

var (
	accountEncMode cbor.EncMode
	accountDecMode cbor.DecMode
)

func init() {
	var err error

	accountEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create account CBOR encoder mode: %v", err))
	}

	accountDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create account CBOR decoder mode: %v", err))
	}
}

// EncodeAccount encodes a to CBOR.
func EncodeAccount(a Account) ([]byte, error) {
	return accountEncMode.Marshal(a)
}

// DecodeEvent derives the account carried by a change event. It is the
// transform handed to synchronizers.
func DecodeEvent(ev ChangeEvent) (Account, error) {
	var a Account
	if err := accountDecMode.Unmarshal(ev.Data, &a); err != nil {
		return Account{}, fmt.Errorf("decode %s at slot %d: %w", ev.Address, ev.Slot, err)
	}
	if a.Address != ev.Address {
		return Account{}, fmt.Errorf("event for %s carries account %s", ev.Address, a.Address)
	}
	return a, nil
}
