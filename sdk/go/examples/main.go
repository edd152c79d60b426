package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"NeoX-Agent/sdk/go/neox"
)

type options struct {
	Addr    string `long:"addr" default:"http://localhost:8080" description:"agent API address"`
	APIKey  string `long:"api-key" env:"NEOX_API_KEY" description:"bearer key for the agent API"`
	Address string `long:"address" description:"address to query the balance of"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	client, err := neox.NewClient(opts.Addr, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	client.SetAPIKey(opts.APIKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	plugin, err := client.ListActions(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, action := range plugin.Actions {
		fmt.Printf("%s: %s\n", action.Name, action.Description)
	}

	name, text := "GET_NEO_BLOCK", "latest block"
	if opts.Address != "" {
		name, text = "GET_NEO_BALANCE", "balance of "+opts.Address
	}
	result, err := client.InvokeAction(ctx, name, neox.Invocation{Text: text, Options: map[string]any{"address": opts.Address}})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, content := range result.Responses {
		fmt.Println(content.Text)
	}
}
