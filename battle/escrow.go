package battle

import (
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const ContractEscrowID = "coinflipEscrow"

// contractEscrow holds the pooled stakes of one room. It has no operations
// of its own: deposits, payouts and removal all arrive as state changes
// emitted by the battle contract, so every direct instruction is rejected.
type contractEscrow struct {
	byzcoin.BasicContract
	EscrowStorage
}

func contractEscrowFromBytes(in []byte) (byzcoin.Contract, error) {
	c := &contractEscrow{}
	err := protobuf.Decode(in, &c.EscrowStorage)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return c, nil
}

func (c *contractEscrow) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("escrow instances are managed by the battle contract")
}

func (c *contractEscrow) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("escrow instances are managed by the battle contract")
}

func (c *contractEscrow) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("escrow instances are managed by the battle contract")
}
