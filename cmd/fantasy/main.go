// Command fantasy is a terminal client for the fantasy RPG server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"fantasyrpg/client"
	"fantasyrpg/shared/protocol"
)

const usage = `usage: fantasy <command> [flags]

commands:
  register -wallet W -pass P   register a wallet
  login    -wallet W -pass P   log in and save the token
  logout                       forget the saved token
  play     [-class C] [-attacks N] [-potion]
  leaderboard [-order kills_exp|kills]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := client.LoadConfig()
	if err != nil {
		exitf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		wallet := fs.String("wallet", "", "wallet address")
		pass := fs.String("pass", "", "passphrase")
		_ = fs.Parse(args)
		if *wallet == "" || *pass == "" {
			exitf("%s: -wallet and -pass are required", cmd)
		}
		h := client.NewHTTP(cfg.APIBase, "")
		if cmd == "register" {
			if err := h.Register(ctx, *wallet, *pass); err != nil {
				exitf("register: %v", err)
			}
			fmt.Println("registered", *wallet)
			return
		}
		tok, err := h.Login(ctx, *wallet, *pass)
		if err != nil {
			exitf("login: %v", err)
		}
		if err := cfg.SaveToken(tok); err != nil {
			exitf("save token: %v", err)
		}
		fmt.Println("logged in as", *wallet)

	case "logout":
		if err := cfg.ClearToken(); err != nil {
			exitf("logout: %v", err)
		}

	case "play":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		class := fs.String("class", "", "class to create when the wallet has no character")
		attacks := fs.Int("attacks", 1, "number of attacks")
		potion := fs.Bool("potion", false, "buy a potion before attacking")
		_ = fs.Parse(args)
		if err := play(ctx, cfg, *class, *attacks, *potion); err != nil {
			exitf("play: %v", err)
		}

	case "leaderboard":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		order := fs.String("order", "", "kills_exp or kills")
		_ = fs.Parse(args)
		lb, err := client.NewHTTP(cfg.APIBase, cfg.LoadToken()).Leaderboard(ctx, *order)
		if err != nil {
			exitf("leaderboard: %v", err)
		}
		fmt.Printf("%-4s %-24s %-8s %6s %6s %5s\n", "#", "OWNER", "CLASS", "KILLS", "EXP", "LVL")
		for _, e := range lb.Items {
			fmt.Printf("%-4d %-24s %-8s %6d %6d %5d\n", e.Rank, e.Owner, e.Class, e.Killed, e.Exp, e.Level)
		}

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func play(ctx context.Context, cfg client.Config, class string, attacks int, potion bool) error {
	tok := cfg.LoadToken()
	if tok == "" {
		return fmt.Errorf("not logged in")
	}
	n, err := client.Dial(ctx, cfg.WSURL, tok)
	if err != nil {
		return err
	}
	defer n.Close()
	n.Observe = func(m protocol.MsgEnvelope) {
		switch m.Type {
		case "Notice":
			var msg protocol.Notice
			_ = json.Unmarshal(m.Data, &msg)
			fmt.Println("*", msg.Message)
		case "AttackProgress":
			var msg protocol.AttackProgress
			_ = json.Unmarshal(m.Data, &msg)
			fmt.Printf("\r[%-50s] %3d%%", strings.Repeat("#", msg.Percent/2), msg.Percent)
			if msg.Percent >= 100 {
				fmt.Println()
			}
		}
	}

	st, err := awaitState(ctx, n)
	if err != nil {
		return err
	}
	if st.State == "NeedsCreation" {
		if class == "" {
			return fmt.Errorf("no character yet, pick one with -class (%s)", strings.Join(st.Classes, ", "))
		}
		if err := n.Send("CreateCharacter", protocol.CreateCharacter{Class: class}); err != nil {
			return err
		}
		if st, err = awaitState(ctx, n); err != nil {
			return err
		}
	}
	printState(st)

	if potion {
		if err := n.Send("BuyPotion", protocol.BuyPotion{}); err != nil {
			return err
		}
		if st, err = awaitState(ctx, n); err != nil {
			fmt.Println("potion:", err)
		} else {
			printState(st)
		}
	}

	for i := 0; i < attacks; i++ {
		if err := n.Send("Attack", protocol.Attack{}); err != nil {
			return err
		}
		m, err := n.Await(ctx, "BattleResult")
		if err != nil {
			return err
		}
		var res protocol.BattleResult
		_ = json.Unmarshal(m.Data, &res)
		l := res.Log
		fmt.Printf("%s  killed %s  +%d gold  +%d exp  -%d hp\n",
			time.UnixMilli(l.Timestamp).Format("15:04:05"), l.Monster, l.GoldEarned, l.ExpEarned, l.LostHP)
		if st, err = awaitState(ctx, n); err != nil {
			return err
		}
	}
	printState(st)
	return n.Send("Logout", protocol.Logout{})
}

func awaitState(ctx context.Context, n *client.Net) (protocol.State, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	m, err := n.Await(ctx, "State")
	if err != nil {
		return protocol.State{}, err
	}
	var st protocol.State
	err = json.Unmarshal(m.Data, &st)
	return st, err
}

func printState(st protocol.State) {
	if st.Warning != "" {
		fmt.Println("!", st.Warning)
	}
	if st.Player == nil {
		fmt.Println("state:", st.State)
		return
	}
	p := st.Player
	fmt.Printf("%s lvl %d (%d%%)  hp %d  gold %d  kills %d  exp %d\n",
		p.Class, st.Level, st.Progress.Percent, p.HPOrDefault(), p.Gold, p.Killed, p.Exp)
	if s := st.Stats; s != nil {
		fmt.Printf("  ATK %d  AGI %d  VIT %d  INT %d\n", s.Atk, s.Agi, s.Vit, s.Int)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
