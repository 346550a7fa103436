package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/fieldkeeper/internal/flagx"
	"github.com/dmitrijs2005/fieldkeeper/internal/server"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/auth"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/config"
)

// issueTokenArg returns the value of -issue-token ("subject:tenant1,tenant2").
func issueTokenArg() string {
	var arg string
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.StringVar(&arg, "issue-token", "", "print an access token for subject:tenant1,tenant2 and exit")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-issue-token"}))
	return arg
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if arg := issueTokenArg(); arg != "" {
		subject, tenants, _ := strings.Cut(arg, ":")
		token, err := auth.GenerateToken(subject, flagx.SplitList(tenants), []byte(cfg.SecretKey), cfg.TokenValidityDuration)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
