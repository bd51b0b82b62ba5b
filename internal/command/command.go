// Package command implements the line command language that drives a
// roller session.
package command

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lawnchairsociety/combatroller/internal/display"
	"github.com/lawnchairsociety/combatroller/internal/help"
	"github.com/lawnchairsociety/combatroller/internal/roll"
	"github.com/lawnchairsociety/combatroller/internal/throttle"
)

// Kind classifies a Response for the transport.
type Kind string

const (
	KindAttack Kind = "attack"
	KindDamage Kind = "damage"
	KindInfo   Kind = "info"
	KindError  Kind = "error"
	KindQuit   Kind = "quit"
)

// SessionInterface defines the methods we need from a session.
// These are satisfied by *session.Session
type SessionInterface interface {
	CommitAttack(input string) error
	CommitDamage(input string) error
	Attack() roll.AttackSpec
	Damage() roll.DamageSpec
	RollAttack(advantage, disadvantage bool) roll.AttackResult
	RollDamage(critical bool) (roll.DamageResult, error)
}

// Context is what a command needs from the connection running it.
type Context interface {
	GetSession() SessionInterface
	GetHelp() *help.Help
	// CheckThrottle is consulted before every roll.
	CheckThrottle() throttle.CheckResult
}

// Response is the outcome of one command.
type Response struct {
	Kind  Kind
	Text  string
	Icons []display.Icon
}

// Command is a parsed input line.
type Command struct {
	Name string
	Args []string
	// Rest is everything after the name with surrounding whitespace removed.
	Rest string
}

// Parse splits a line into a lower-cased command name, its arguments and
// the raw remainder.
func Parse(input string) *Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return &Command{Name: "", Args: []string{}}
	}

	name, rest := input, ""
	if idx := strings.IndexFunc(input, unicode.IsSpace); idx != -1 {
		name, rest = input[:idx], strings.TrimSpace(input[idx:])
	}

	return &Command{
		Name: strings.ToLower(name),
		Args: strings.Fields(rest),
		Rest: rest,
	}
}

// Execute runs cmd against ctx.
func Execute(ctx Context, cmd *Command) Response {
	switch cmd.Name {
	case "attack", "atk":
		return cmd.executeSetAttack(ctx)
	case "damage", "dmg":
		return cmd.executeSetDamage(ctx)
	case "hit", "roll":
		return cmd.executeHit(ctx)
	case "smite", "rolldamage":
		return cmd.executeSmite(ctx)
	case "show":
		return cmd.executeShow(ctx)
	case "help":
		return cmd.executeHelp(ctx)
	case "quit", "exit":
		return Response{Kind: KindQuit, Text: "Goodbye!"}
	case "":
		return Response{Kind: KindInfo}
	default:
		return errorf("Unknown command: %s. Type 'help' for available commands.", cmd.Name)
	}
}

func info(text string) Response {
	return Response{Kind: KindInfo, Text: text}
}

func errorf(format string, args ...any) Response {
	return Response{Kind: KindError, Text: fmt.Sprintf(format, args...)}
}

func (c *Command) executeHelp(ctx Context) Response {
	h := ctx.GetHelp()
	if h == nil {
		return errorf("Help is not available.")
	}
	return info(h.GetHelpText(strings.ToLower(c.Rest)))
}
