package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/zarrpipe/internal/app"
)

func main() {
	configPath := flag.String("config", "recipe.yaml", "path to the recipe config file")
	flag.Parse()

	a, err := app.New(*configPath)
	if err != nil {
		fmt.Printf("failed to initialize recipe: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		fmt.Printf("recipe run failed: %v\n", err)
		os.Exit(1)
	}
}
