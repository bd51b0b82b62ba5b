package command

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/combatroller/internal/display"
	"github.com/lawnchairsociety/combatroller/internal/logger"
)

func (c *Command) executeSetAttack(ctx Context) Response {
	s := ctx.GetSession()
	if err := s.CommitAttack(c.Rest); err != nil {
		return errorf("%v", err)
	}
	return info(fmt.Sprintf("Attack modifier set to %s.", display.FormatAttackSpec(s.Attack())))
}

func (c *Command) executeSetDamage(ctx Context) Response {
	s := ctx.GetSession()
	if err := s.CommitDamage(c.Rest); err != nil {
		return errorf("%v", err)
	}
	return info(fmt.Sprintf("Damage set to %s.", display.FormatDamageSpec(s.Damage())))
}

func (c *Command) executeHit(ctx Context) Response {
	var advantage, disadvantage bool
	for _, arg := range c.Args {
		arg = strings.ToLower(arg)
		switch arg {
		case "adv", "advantage":
			advantage = true
		case "dis", "disadvantage":
			disadvantage = true
		default:
			return errorf("Usage: hit [adv|advantage] [dis|disadvantage]")
		}
	}

	if blocked, resp := throttled(ctx); blocked {
		return resp
	}

	result := ctx.GetSession().RollAttack(advantage, disadvantage)
	logger.Audit("attack roll",
		"result", result.Result,
		"rolls", result.Rolls,
		"advantage", advantage,
		"disadvantage", disadvantage)

	return Response{
		Kind:  KindAttack,
		Text:  "To hit: " + display.FormatAttack(result),
		Icons: display.AttackIcons(result),
	}
}

func (c *Command) executeSmite(ctx Context) Response {
	var critical bool
	for _, arg := range c.Args {
		arg = strings.ToLower(arg)
		switch arg {
		case "crit", "critical":
			critical = true
		default:
			return errorf("Usage: smite [crit|critical]")
		}
	}

	if blocked, resp := throttled(ctx); blocked {
		return resp
	}

	result, err := ctx.GetSession().RollDamage(critical)
	if err != nil {
		logger.Error("damage roll failed", "error", err)
		return errorf("Could not roll damage: %v", err)
	}
	logger.Audit("damage roll",
		"damage", result.Damage,
		"rolls", result.Rolls,
		"critical", critical)

	return Response{
		Kind:  KindDamage,
		Text:  "Damage: " + display.FormatDamage(result),
		Icons: display.DamageIcons(result),
	}
}

func (c *Command) executeShow(ctx Context) Response {
	s := ctx.GetSession()
	return info(fmt.Sprintf("Attack: %s\nDamage: %s",
		display.FormatAttackSpec(s.Attack()),
		display.FormatDamageSpec(s.Damage())))
}

func throttled(ctx Context) (bool, Response) {
	result := ctx.CheckThrottle()
	if result.Allowed {
		return false, Response{}
	}
	return true, errorf("%s Try again in %d seconds.", result.Reason, result.WaitSeconds)
}
