package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"set-tools/config"
	"set-tools/orchestrator"
	"set-tools/parser"
	"set-tools/utils"
	"strings"
	"time"
)

//goland:noinspection GoUnnecessarilyExportedIdentifiers
var AppVersion = "1.0"

var usageText = "Usage: ./set-tools command.\nAvailable commands:\n  open <project>\n  rescan <project>\n  commit <set> [comment]\n  versions <set>\n  extract_register <project> <subproject> <source set> <track id>\n  orphans <project>\n  watch <project>\n"

//go:embed config.yaml
var defaultConfigData []byte

func main() {
	c, err := config.Load(defaultConfigData)

	if err != nil {
		log.Fatal(err)
	}

	err = utils.SetupLogger(c.LogFilePath)

	if err != nil {
		log.Fatal(err)
	}

	ctx := &Context{
		Config:       c,
		Orchestrator: orchestrator.New(c, parser.GzipXMLParser{}),
	}

	defer ctx.Orchestrator.Close()

	debugFormat := ""

	if c.IsDebug {
		debugFormat = " (debug)"
	}

	utils.ConsoleAndLogPrintf("Set Tools version %s%s. Using %s", AppVersion, debugFormat, utils.Pluralize("parser", c.MaxConcurrentParsers))
	startTime := time.Now()

	if len(os.Args) < 2 {
		utils.ConsoleAndLogPrintf(fmt.Sprintf("A command must be specified. %s", usageText))
		return
	}

	err = ctx.runCommand(strings.ToLower(os.Args[1]), os.Args[2:])

	if err != nil {
		utils.ConsoleAndLogPrintf("Error: %v", err)
	}

	utils.ConsoleAndLogPrintf("Finished in %s", utils.FormatDuration(time.Since(startTime)))
}
