// Command console is a small operator tool: it polls the relay's stats
// endpoint and renders the live assignment table and traffic counters.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"support-relay/observability"
)

type Config struct {
	RelayAddr string        `envconfig:"RELAY_ADDR" default:"http://localhost:8080"`
	Interval  time.Duration `envconfig:"CONSOLE_INTERVAL" default:"5s"`
	// CONSOLE_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"CONSOLE_COLOURS" default:"true"`
}

type statsResponse struct {
	Stats       observability.RelayStats `json:"stats"`
	Assignments map[string][]string      `json:"assignments"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	render(cfg)
	for {
		select {
		case <-sigs:
			return
		case <-ticker.C:
			render(cfg)
		}
	}
}

func render(cfg Config) {
	resp, err := http.Get(cfg.RelayAddr + "/debug/stats")
	if err != nil {
		log.Printf("Relay unreachable at %s: %v", cfg.RelayAddr, err)
		return
	}
	defer resp.Body.Close()

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("Bad stats payload: %v", err)
		return
	}

	fmt.Println(header(cfg, fmt.Sprintf(" Relay @ %s | %s ",
		cfg.RelayAddr, body.Stats.UpdatedAt.Format(time.TimeOnly))))
	printStats(body.Stats)
	printAssignments(cfg, body.Assignments)
	fmt.Println()
}

func printStats(stats observability.RelayStats) {
	table := newTable()
	table.SetHeader([]string{"Connections", "Identified", "Responders", "Pairings", "Relayed", "Dropped", "Mem MB", "CPU %"})
	table.Append([]string{
		strconv.Itoa(stats.ConnectionsOpen),
		strconv.Itoa(stats.Identified),
		strconv.Itoa(stats.RespondersOnline),
		strconv.Itoa(stats.ActivePairings),
		strconv.FormatUint(stats.MessagesRelayed, 10),
		strconv.FormatUint(stats.MessagesDropped, 10),
		strconv.FormatUint(stats.AllocMemMb, 10),
		fmt.Sprintf("%.1f", stats.CpuPercent),
	})
	table.Render()
}

func printAssignments(cfg Config, assignments map[string][]string) {
	table := newTable()
	table.SetHeader([]string{"Responder", "Load", "Seekers"})

	responders := make([]string, 0, len(assignments))
	for id := range assignments {
		responders = append(responders, id)
	}
	sort.Strings(responders)

	for _, id := range responders {
		seekers := assignments[id]
		table.Append([]string{id, strconv.Itoa(len(seekers)), strings.Join(seekers, ", ")})
	}
	if len(responders) == 0 {
		msg := "no responder online"
		if cfg.Colours {
			msg = color.New(color.FgYellow).Render(msg)
		}
		fmt.Println(msg)
		return
	}
	table.Render()
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func header(cfg Config, text string) string {
	if !cfg.Colours {
		return text
	}
	return color.New(color.BgBlack, color.FgGreen).Render(text)
}
