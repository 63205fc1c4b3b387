package repo

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	VotePolicyAddress = "address"
	VotePolicyBalance = "balance"
)

type Config struct {
	RepoRoot string `mapstructure:"-" toml:"-"`
	DialUrl  string `mapstructure:"dial_url" toml:"dial_url"`

	// Owner is the only address allowed to withdraw and to close funding early
	Owner string `mapstructure:"owner" toml:"owner"`
	// FundingEnd is the unix second at which the funding phase ends
	FundingEnd uint64 `mapstructure:"funding_end" toml:"funding_end"`
	// Quorum is the absolute vote count a proposal needs, not a percentage
	Quorum uint64 `mapstructure:"quorum" toml:"quorum"`
	// VotePolicy is "address" (one address one vote) or "balance" (one token one vote)
	VotePolicy string `mapstructure:"vote_policy" toml:"vote_policy"`
	// TokenRate is the number of tokens issued per contributed fund unit
	TokenRate uint64 `mapstructure:"token_rate" toml:"token_rate"`
	// MaxVotingPeriod caps the requested proposal duration, 0 means unlimited
	MaxVotingPeriod time.Duration `mapstructure:"max_voting_period" toml:"max_voting_period"`

	Log    Log    `mapstructure:"log" toml:"log"`
	Keeper Keeper `mapstructure:"keeper" toml:"keeper"`
	Watch  Watch  `mapstructure:"watch" toml:"watch"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Keeper struct {
	Enable   bool          `mapstructure:"enable" toml:"enable"`
	Interval time.Duration `mapstructure:"interval" toml:"interval"`
}

type Watch struct {
	Enable bool `mapstructure:"enable" toml:"enable"`
	// TokenAddress emits the ERC-20 Transfer events mirrored into the holder registry
	TokenAddress string `mapstructure:"token_address" toml:"token_address"`
	// FundsAddress emits the FundsReceived events credited to the treasury
	FundsAddress string `mapstructure:"funds_address" toml:"funds_address"`
	// beginning of the queried range, 1 means genesis block
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// end of the range, 0 means latest block
	ToBlock uint64 `mapstructure:"to_block" toml:"to_block"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot:        repoRoot,
		DialUrl:         "ws://localhost:8546",
		Owner:           DefaultOwnerAddr,
		FundingEnd:      uint64(time.Now().Add(7 * 24 * time.Hour).Unix()),
		Quorum:          3,
		VotePolicy:      VotePolicyAddress,
		TokenRate:       1,
		MaxVotingPeriod: 0,
		Log: Log{
			Level:        "info",
			Filename:     "daico.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Keeper: Keeper{
			Enable:   true,
			Interval: 30 * time.Second,
		},
		Watch: Watch{
			Enable:       false,
			TokenAddress: common.Address{}.Hex(),
			FundsAddress: common.Address{}.Hex(),
			FromBlock:    1,
			ToBlock:      0,
		},
	}
}

// Check reports the first invalid field of the config.
func (c *Config) Check() error {
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("invalid owner address %q", c.Owner)
	}
	if c.Quorum == 0 {
		return errors.New("quorum must be greater than 0")
	}
	switch c.VotePolicy {
	case VotePolicyAddress, VotePolicyBalance:
	default:
		return fmt.Errorf("unknown vote policy %q", c.VotePolicy)
	}
	if c.TokenRate == 0 {
		return errors.New("token rate must be greater than 0")
	}
	if c.Keeper.Enable && c.Keeper.Interval <= 0 {
		return errors.New("keeper interval must be positive")
	}
	if c.Watch.Enable {
		if !common.IsHexAddress(c.Watch.TokenAddress) {
			return fmt.Errorf("invalid token address %q", c.Watch.TokenAddress)
		}
		if !common.IsHexAddress(c.Watch.FundsAddress) {
			return fmt.Errorf("invalid funds address %q", c.Watch.FundsAddress)
		}
		if c.Watch.ToBlock != 0 && c.Watch.ToBlock < c.Watch.FromBlock {
			return errors.New("watch to_block is lower than from_block")
		}
	}
	return nil
}
