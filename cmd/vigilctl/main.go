// Command vigilctl inspects and steers a running vigil service over its HTTP
// API.
//
// Usage:
//
//	vigilctl view --severity critical
//	vigilctl toggle high
//	vigilctl check
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

// Globals are shared by every subcommand.
type Globals struct {
	Addr    string        `help:"Base URL of the vigil service." default:"http://localhost:8080" env:"VIGIL_ADDR"`
	Timeout time.Duration `help:"Request timeout." default:"10s"`
}

type cli struct {
	Globals

	View   viewCmd   `cmd:"" help:"Show mapped points and the event feed."`
	Arcs   arcsCmd   `cmd:"" help:"List buffered globe arcs, oldest first."`
	Stats  statsCmd  `cmd:"" help:"Show counters and the active filter."`
	Toggle toggleCmd `cmd:"" help:"Toggle the severity filter."`
	Clear  clearCmd  `cmd:"" help:"Clear the severity filter."`
	Check  checkCmd  `cmd:"" help:"Verify the live projection is internally consistent."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("vigilctl"),
		kong.Description("Inspect a running vigil service."),
		kong.UsageOnError(),
	)
	api := &apiClient{
		base: c.Addr,
		http: &http.Client{Timeout: c.Timeout},
		out:  os.Stdout,
	}
	ctx.FatalIfErrorf(ctx.Run(api))
}
