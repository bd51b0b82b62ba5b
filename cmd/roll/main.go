// Command roll makes one-shot attack and damage rolls from the command line.
//
//	roll -attack "+5" -adv
//	roll -damage 2d6+3 -crit -n 3
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lawnchairsociety/combatroller/internal/config"
	"github.com/lawnchairsociety/combatroller/internal/dice"
	"github.com/lawnchairsociety/combatroller/internal/display"
	"github.com/lawnchairsociety/combatroller/internal/notation"
	"github.com/lawnchairsociety/combatroller/internal/roll"
)

// options holds the parsed command line.
type options struct {
	attack       string
	attackSet    bool
	advantage    bool
	disadvantage bool
	damage       string
	damageSet    bool
	critical     bool
	seed         uint64
	count        int
	rules        config.RollsConfig
}

func main() {
	fs := flag.NewFlagSet("roll", flag.ExitOnError)
	opts, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	src, err := newSource(opts.seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(os.Stdout, src, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	configFile := fs.String("config", "data/server.yaml", "Path to server config YAML file (for advantage/disadvantage dice counts)")
	fs.StringVar(&opts.attack, "attack", "", "Attack modifier, e.g. +5")
	fs.BoolVar(&opts.advantage, "adv", false, "Roll the attack with advantage")
	fs.BoolVar(&opts.disadvantage, "dis", false, "Roll the attack with disadvantage")
	fs.StringVar(&opts.damage, "damage", "", "Damage dice, e.g. 2d6+3")
	fs.BoolVar(&opts.critical, "crit", false, "Roll damage as a critical hit")
	fs.Uint64Var(&opts.seed, "seed", 0, "Dice seed for reproducible rolls (default: random)")
	fs.IntVar(&opts.count, "n", 1, "Number of repetitions")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "attack":
			opts.attackSet = true
		case "damage":
			opts.damageSet = true
		}
	})

	if !opts.attackSet && !opts.damageSet {
		return opts, fmt.Errorf("nothing to roll: pass -attack and/or -damage")
	}
	if opts.count < 1 {
		return opts, fmt.Errorf("-n must be at least 1, got %d", opts.count)
	}

	// A missing or unreadable config only loses custom dice counts
	cfg, _ := config.LoadConfig(*configFile)
	opts.rules = cfg.Rolls

	return opts, nil
}

func newSource(seed uint64) (dice.Source, error) {
	if seed != 0 {
		return dice.NewSource(seed), nil
	}
	src, err := dice.NewRandomSource()
	if err != nil {
		return nil, fmt.Errorf("seed random source: %w", err)
	}
	return src, nil
}

// run parses both expressions before rolling anything so a bad damage
// expression does not leave a stray attack roll on stdout.
func run(w io.Writer, src dice.Source, opts options) error {
	var attack roll.AttackSpec
	if opts.attackSet {
		spec, err := notation.ParseAttack(opts.attack)
		if err != nil {
			return err
		}
		attack = spec
	}

	var damage roll.DamageSpec
	if opts.damageSet {
		spec, err := notation.ParseDamage(opts.damage)
		if err != nil {
			return err
		}
		damage = spec
	}

	attackOpts := opts.rules.AttackOptions()
	attackOpts.Advantage = opts.advantage
	attackOpts.Disadvantage = opts.disadvantage

	for i := 0; i < opts.count; i++ {
		if opts.attackSet {
			result := roll.RollToHit(src, attack, attackOpts)
			fmt.Fprintf(w, "To hit: %s\n", display.FormatAttack(result))
		}
		if opts.damageSet {
			result, err := roll.RollDamage(src, damage, opts.critical)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Damage: %s\n", display.FormatDamage(result))
		}
	}
	return nil
}
