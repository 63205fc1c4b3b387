package main

import (
	"fmt"
	"math/big"

	"github.com/axiomesh/daico/core"
	"github.com/axiomesh/daico/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	fromFlag = &cli.StringFlag{
		Name:     "from",
		Usage:    "Address of the caller",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "Amount in the smallest unit",
		Required: true,
	}
	idFlag = &cli.Uint64Flag{
		Name:     "id",
		Usage:    "Proposal id",
		Required: true,
	}
)

var statusCMD = &cli.Command{
	Name:   "status",
	Usage:  "Show the phase, tap, treasury balance and owed amount",
	Action: withDAICO(status),
}

var contributeCMD = &cli.Command{
	Name:   "contribute",
	Usage:  "Contribute funds during the funding phase",
	Flags:  []cli.Flag{fromFlag, amountFlag},
	Action: withDAICO(contribute),
}

var transferCMD = &cli.Command{
	Name:  "transfer",
	Usage: "Transfer tokens between holders",
	Flags: []cli.Flag{
		fromFlag,
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Receiving address",
			Required: true,
		},
		amountFlag,
	},
	Action: withDAICO(transfer),
}

var closeFundingCMD = &cli.Command{
	Name:   "close-funding",
	Usage:  "End the funding phase before the funding end time",
	Flags:  []cli.Flag{fromFlag},
	Action: withDAICO(closeFunding),
}

var withdrawCMD = &cli.Command{
	Name:   "withdraw",
	Usage:  "Pay the owner what accrued under the tap",
	Flags:  []cli.Flag{fromFlag},
	Action: withDAICO(withdraw),
}

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "Tap raise proposal commands",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Propose a higher tap",
			Flags: []cli.Flag{
				fromFlag,
				&cli.StringFlag{
					Name:     "tap",
					Usage:    "Proposed tap in fund units per second",
					Required: true,
				},
				&cli.Uint64Flag{
					Name:     "duration",
					Usage:    "Voting period in seconds",
					Required: true,
				},
			},
			Action: withDAICO(createProposal),
		},
		{
			Name:  "vote",
			Usage: "Vote on a proposal",
			Flags: []cli.Flag{
				fromFlag,
				idFlag,
				&cli.BoolFlag{
					Name:  "against",
					Usage: "Vote against the proposal",
				},
			},
			Action: withDAICO(vote),
		},
		{
			Name:   "execute",
			Usage:  "Resolve a proposal after its voting deadline",
			Flags:  []cli.Flag{fromFlag, idFlag},
			Action: withDAICO(executeProposal),
		},
		{
			Name:   "show",
			Usage:  "Show a proposal",
			Flags:  []cli.Flag{idFlag},
			Action: withDAICO(showProposal),
		},
		{
			Name:   "list",
			Usage:  "List all proposals",
			Action: withDAICO(listProposals),
		},
	},
}

// withDAICO opens the repo storage for the duration of one command.
// It fails while a started node holds the storage lock.
func withDAICO(action func(ctx *cli.Context, d *core.DAICO) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		p, err := getRootPath(ctx)
		if err != nil {
			return err
		}
		if !repo.Initialized(p) {
			return errors.Errorf("daico repo not exist in %s", p)
		}
		r, err := repo.Load(p)
		if err != nil {
			return err
		}
		db, d, err := openDAICO(r)
		if err != nil {
			return err
		}
		defer db.Close()

		return action(ctx, d)
	}
}

func parseAddress(ctx *cli.Context, name string) (common.Address, error) {
	s := ctx.String(name)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("invalid %s address: %s", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(ctx *cli.Context, name string) (*big.Int, error) {
	s := ctx.String(name)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid %s: %s", name, s)
	}
	return v, nil
}

func status(ctx *cli.Context, d *core.DAICO) error {
	s := d.Status()
	fmt.Printf("phase: %s\n", s.Phase)
	fmt.Printf("now: %d\n", s.Now)
	fmt.Printf("funding end: %d\n", s.FundingEnd)
	fmt.Printf("tap: %s\n", s.Tap)
	fmt.Printf("last withdrawn: %d\n", s.LastWithdrawn)
	fmt.Printf("balance: %s\n", s.Balance)
	fmt.Printf("owed: %s\n", s.Owed)
	fmt.Printf("proposals: %d\n", s.Proposals)
	fmt.Printf("total supply: %s\n", s.TotalSupply)
	return nil
}

func contribute(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	amount, err := parseAmount(ctx, "amount")
	if err != nil {
		return err
	}
	minted, err := d.Contribute(from, amount)
	if err != nil {
		return err
	}
	fmt.Printf("minted %s tokens to %s\n", minted, from.Hex())
	return nil
}

func transfer(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	to, err := parseAddress(ctx, "to")
	if err != nil {
		return err
	}
	amount, err := parseAmount(ctx, "amount")
	if err != nil {
		return err
	}
	return d.TransferTokens(from, to, amount)
}

func closeFunding(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	if err := d.CloseFunding(from); err != nil {
		return err
	}
	fmt.Println("funding closed")
	return nil
}

func withdraw(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	amount, err := d.Withdraw(from)
	if err != nil {
		return err
	}
	fmt.Printf("withdrew %s\n", amount)
	return nil
}

func createProposal(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	tap, err := parseAmount(ctx, "tap")
	if err != nil {
		return err
	}
	id, err := d.CreateProposal(from, tap, ctx.Uint64("duration"))
	if err != nil {
		return err
	}
	fmt.Printf("proposal %d created\n", id)
	return nil
}

func vote(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	return d.Vote(from, ctx.Uint64("id"), !ctx.Bool("against"))
}

func executeProposal(ctx *cli.Context, d *core.DAICO) error {
	from, err := parseAddress(ctx, "from")
	if err != nil {
		return err
	}
	passed, err := d.ExecuteProposal(from, ctx.Uint64("id"))
	if err != nil {
		return err
	}
	fmt.Printf("proposal %d executed, passed: %v\n", ctx.Uint64("id"), passed)
	return nil
}

func showProposal(ctx *cli.Context, d *core.DAICO) error {
	p, err := d.Proposal(ctx.Uint64("id"))
	if err != nil {
		return err
	}
	printProposal(p)
	return nil
}

func listProposals(ctx *cli.Context, d *core.DAICO) error {
	proposals, err := d.Proposals()
	if err != nil {
		return err
	}
	for _, p := range proposals {
		printProposal(p)
	}
	return nil
}

func printProposal(p *core.Proposal) {
	fmt.Printf("id: %d proposer: %s tap: %s deadline: %d votes: %s yes: %s executed: %v passed: %v\n",
		p.ID, p.Proposer.Hex(), p.ProposedTap, p.VotingDeadline, p.NumberOfVotes, p.PositiveVotes, p.Executed, p.Passed)
}
