package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PenaltyPolicy is the late-payment business policy. The numbers are
// intentionally configuration, not code: collections has changed the
// flat amount and the rate before and will again.
type PenaltyPolicy struct {
	// FlatAmount is charged per overdue day when the installment's
	// capital+interest due is below FlatThreshold.
	FlatAmount float64 `mapstructure:"flatAmount"`
	// Rate is applied to capital+interest due at or above FlatThreshold.
	Rate          float64 `mapstructure:"rate"`
	FlatThreshold float64 `mapstructure:"flatThreshold"`
	// CutoffHour: an installment due today becomes overdue once local
	// time reaches this hour. Days after the due date are always overdue.
	CutoffHour int    `mapstructure:"cutoffHour"`
	Currency   string `mapstructure:"currency"`
}

func (p PenaltyPolicy) FlatAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.FlatAmount)
}

func (p PenaltyPolicy) RateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.Rate)
}

func (p PenaltyPolicy) FlatThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.FlatThreshold)
}

func DefaultPenaltyPolicy() PenaltyPolicy {
	return PenaltyPolicy{
		FlatAmount:    50,
		Rate:          0.10,
		FlatThreshold: 500,
		CutoffHour:    14,
		Currency:      "MXN",
	}
}

// PolicyHolder serves the current penalty policy and hot-reloads it
// when the policy file changes on disk.
type PolicyHolder struct {
	current atomic.Value // holds PenaltyPolicy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/cobranza")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COBRANZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPenaltyPolicy()
	v.SetDefault("penalty.flatAmount", defaults.FlatAmount)
	v.SetDefault("penalty.rate", defaults.Rate)
	v.SetDefault("penalty.flatThreshold", defaults.FlatThreshold)
	v.SetDefault("penalty.cutoffHour", defaults.CutoffHour)
	v.SetDefault("penalty.currency", defaults.Currency)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy PenaltyPolicy
	if err := v.UnmarshalKey("penalty", &policy); err != nil {
		return nil, err
	}
	if err := validatePenaltyPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PenaltyPolicy
			if err := v.UnmarshalKey("penalty", &updated); err != nil {
				log.Printf("[penalty-policy] reload failed: %v", err)
				return
			}
			if err := validatePenaltyPolicy(updated); err != nil {
				log.Printf("[penalty-policy] invalid policy ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[penalty-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *PolicyHolder) Get() PenaltyPolicy {
	return h.current.Load().(PenaltyPolicy)
}

// NewStaticPolicyHolder returns a holder pinned to the given policy.
// Test helper.
func NewStaticPolicyHolder(p PenaltyPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func validatePenaltyPolicy(p PenaltyPolicy) error {
	if p.FlatAmount < 0 {
		return errors.New("penalty.flatAmount cannot be negative")
	}
	if p.Rate < 0 || p.Rate >= 1 {
		return errors.New("penalty.rate must be in [0, 1)")
	}
	if p.FlatThreshold < 0 {
		return errors.New("penalty.flatThreshold cannot be negative")
	}
	if p.CutoffHour < 0 || p.CutoffHour > 23 {
		return errors.New("penalty.cutoffHour must be an hour of day")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("penalty.currency is required")
	}
	return nil
}
