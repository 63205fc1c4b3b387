package main

import (
	"fmt"
	"os"

	"github.com/axiomesh/daico/repo"
	"github.com/urfave/cli/v2"
)

var configCMD = &cli.Command{
	Name:  "config",
	Usage: "The config manage commands",
	Subcommands: []*cli.Command{
		{
			Name:  "generate",
			Usage: "Generate default config",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "owner",
					Usage: "Owner address allowed to withdraw",
				},
				&cli.Uint64Flag{
					Name:  "funding-end",
					Usage: "Unix second at which funding ends",
				},
				&cli.Uint64Flag{
					Name:  "quorum",
					Usage: "Absolute number of votes a proposal needs",
				},
			},
			Action: generate,
		},
		{
			Name:   "show",
			Usage:  "Show the complete config processed by the environment variable",
			Action: show,
		},
		{
			Name:   "check",
			Usage:  "Check if the config file is valid",
			Action: check,
		},
		{
			Name:   "rewrite-with-env",
			Usage:  "Rewrite config with env",
			Action: rewriteWithEnv,
		},
	},
}

func generate(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if repo.Initialized(p) {
		fmt.Println("daico repo already exists")
		return nil
	}

	defaultConfig := repo.DefaultConfig(p)
	if owner := ctx.String("owner"); owner != "" {
		defaultConfig.Owner = owner
	}
	if ctx.IsSet("funding-end") {
		defaultConfig.FundingEnd = ctx.Uint64("funding-end")
	}
	if ctx.IsSet("quorum") {
		defaultConfig.Quorum = ctx.Uint64("quorum")
	}
	if _, err := repo.Init(defaultConfig); err != nil {
		return err
	}

	fmt.Printf("initializing daico at %s\n", p)
	return nil
}

func show(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.Initialized(p) {
		fmt.Println("daico repo not exist")
		return nil
	}

	r, err := repo.Load(p)
	if err != nil {
		return err
	}
	str, err := repo.MarshalConfig(r.Config)
	if err != nil {
		return err
	}
	fmt.Println(str)
	return nil
}

func check(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.Initialized(p) {
		fmt.Println("daico repo not exist")
		return nil
	}

	r, err := repo.Load(p)
	if err != nil {
		fmt.Println("config file format error, please check:", err)
		os.Exit(1)
		return nil
	}
	if err := r.Config.Check(); err != nil {
		fmt.Println("config file value error, please check:", err)
		os.Exit(1)
		return nil
	}

	fmt.Println("config file is valid")
	return nil
}

func rewriteWithEnv(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.Initialized(p) {
		fmt.Println("daico repo not exist")
		return nil
	}

	r, err := repo.Load(p)
	if err != nil {
		return err
	}
	if err := r.Flush(); err != nil {
		return err
	}
	return nil
}

func getRootPath(ctx *cli.Context) (string, error) {
	return repo.RootPath(ctx.String("repo"))
}
