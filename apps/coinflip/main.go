package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/ceyhunalp/coinflip/battle"
	"github.com/ceyhunalp/coinflip/blobstore"
	"github.com/ceyhunalp/coinflip/relay"
	"github.com/ceyhunalp/coinflip/timelock"
	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/protobuf"
	cli "gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "coinflip"
	app.Usage = "Coinflip battle rooms on a collective ledger"
	app.Commands = []cli.Command{
		{
			Name:   "demo",
			Usage:  "run a full create/join/record/settle round on a roster",
			Action: runDemo,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "roster, r", Usage: "roster toml file"},
				cli.IntFlag{Name: "capacity, c", Value: 2, Usage: "room capacity"},
				cli.Uint64Flag{Name: "stake, s", Value: battle.MinStake, Usage: "stake per member"},
				cli.IntFlag{Name: "mode, m", Value: battle.ModeLedgerDraw, Usage: "1 = ledger draw, 2 = relay pick"},
			},
		},
		{
			Name:   "relay",
			Usage:  "initialize a unit and run the relay daemon",
			Action: runRelay,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config, c", Usage: "relay toml config"},
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func runDemo(ctx *cli.Context) error {
	rosterFile := ctx.String("roster")
	capacity := ctx.Int("capacity")
	stake := ctx.Uint64("stake")
	mode := ctx.Int("mode")

	roster, err := utils.ReadRoster(&rosterFile)
	if err != nil {
		return err
	}
	admin := darc.NewSignerEd25519(nil, nil)
	cl := battle.NewClient(roster, admin)
	_, err = cl.InitUnit(nil, 2, 2, 1, time.Second)
	if err != nil {
		return err
	}

	tlCl := timelock.NewClient(roster)
	authority, err := tlCl.PublicKey()
	if err != nil {
		return err
	}
	store, err := blobstore.NewStore("coinflip-blobs.db")
	if err != nil {
		return err
	}
	defer store.Close()

	oracle := key.NewKeyPair(cothority.Suite)
	oracleHex, err := utils.PointToHex(oracle.Public)
	if err != nil {
		return err
	}
	rel := relay.New(
		relay.NewBattleLedger(cl, oracle, 4),
		&relay.TimelockSealer{X: authority},
		relay.NewBlobPublisher(store),
		relay.DefaultInterval)

	players := make([]*key.Pair, capacity)
	for i := range players {
		players[i] = key.NewKeyPair(cothority.Suite)
	}
	side := func(i int) int {
		if i%2 == 0 {
			return battle.SideHeads
		}
		return battle.SideTails
	}

	createReply, err := cl.CreateRoom(players[0], side(0), capacity, stake, mode, oracleHex, 4)
	if err != nil {
		return err
	}
	fmt.Println("room:", hex.EncodeToString(createReply.RoomID.Slice()))
	for i := 1; i < capacity; i++ {
		err = cl.JoinRoom(players[i], createReply.RoomID, side(i), stake, 4)
		if err != nil {
			return err
		}
	}

	// Drive the relay until the result pointer lands on the ledger.
	var room *battle.RoomStorage
	for i := 0; i < 10; i++ {
		rel.Cycle()
		room, err = cl.GetRoom(createReply.RoomID)
		if err != nil {
			return err
		}
		if room.ResultPtr != "" {
			break
		}
		time.Sleep(relay.DefaultInterval)
	}
	if room == nil || room.ResultPtr == "" {
		return fmt.Errorf("relay did not record a result")
	}
	fmt.Println("outcome:", room.Outcome, "winners:", room.Winners)
	fmt.Println("pointer:", room.ResultPtr)

	if wait := room.UnlockTime - utils.UnixMilli(); wait > 0 {
		time.Sleep(time.Duration(wait) * time.Millisecond)
	}

	// Anyone can now open the sealed result.
	ct, err := store.Fetch(room.ResultPtr)
	if err != nil {
		return err
	}
	blob := &timelock.SealedBlob{}
	err = protobuf.DecodeWithConstructors(ct, blob, network.DefaultConstructors(cothority.Suite))
	if err != nil {
		return err
	}
	seed, err := tlCl.Release(players[0], blob)
	if err != nil {
		return err
	}
	payload := &relay.ResultPayload{}
	opened, err := timelock.Open(blob, seed)
	if err != nil {
		return err
	}
	err = protobuf.Decode(opened, payload)
	if err != nil {
		return err
	}
	fmt.Println("sealed payload outcome:", payload.Outcome)

	for i, p := range players {
		id, err := battle.PlayerID(p)
		if err != nil {
			return err
		}
		if !room.IsMember(id) {
			continue
		}
		for _, w := range room.Winners {
			if w == id {
				err = cl.Settle(p, createReply.RoomID, 4)
				if err != nil {
					return err
				}
				fmt.Println("player", i, "claimed their share")
			}
		}
	}

	events, err := cl.PollEvents(0)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("event %d type %d\n", ev.Seq, ev.Type)
	}
	return nil
}

func runRelay(ctx *cli.Context) error {
	cfg, err := relay.LoadConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	roster, err := utils.ReadRoster(&cfg.RosterFile)
	if err != nil {
		return err
	}
	admin := darc.NewSignerEd25519(nil, nil)
	cl := battle.NewClient(roster, admin)
	_, err = cl.InitUnit(nil, 2, 2, 1, time.Second)
	if err != nil {
		return err
	}
	tlCl := timelock.NewClient(roster)
	authority, err := tlCl.PublicKey()
	if err != nil {
		return err
	}
	store, err := blobstore.NewStore(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// The oracle key comes from the key file so that a restarted daemon
	// still matches the OracleKey stored in existing rooms.
	oracle, err := utils.ReadKeyPair(&cfg.KeyFile)
	if err != nil {
		return err
	}
	oracleHex, err := utils.PointToHex(oracle.Public)
	if err != nil {
		return err
	}
	fmt.Println("oracle key:", oracleHex)

	rel := relay.New(
		relay.NewBattleLedger(cl, oracle, cfg.Wait),
		&relay.TimelockSealer{X: authority},
		relay.NewBlobPublisher(store),
		time.Duration(cfg.IntervalMs)*time.Millisecond)
	rel.Start()
	select {}
}
