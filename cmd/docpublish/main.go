package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpublish/cmd/docpublish/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commands.Execute(os.Args[1:], commands.DefaultGlobal(ctx))
	cancel()
	os.Exit(code)
}
