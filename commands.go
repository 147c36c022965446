package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/dustin/go-humanize"
	"os"
	"os/signal"
	"set-tools/orchestrator"
	"set-tools/scanner"
	"set-tools/utils"
	"strconv"
	"strings"
	"syscall"
)

var commands = []string{"open", "rescan", "commit", "versions", "extract_register", "orphans", "watch"}

func (ctx *Context) runCommand(command string, args []string) error {
	if !utils.IsInArray(command, commands) {
		return errors.New(fmt.Sprintf("Command \"%s\" not recognised. %s", command, usageText))
	}

	background := context.Background()

	switch command {
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("%w: open requires a project path", ErrMissingArguments)
		}

		report, err := ctx.Orchestrator.Open(background, args[0])

		if err != nil {
			return err
		}

		printReport("Opened "+args[0], report)

		counts, err := ctx.Orchestrator.CategoryCounts(background, args[0])

		if err != nil {
			return err
		}

		for _, count := range counts {
			fmt.Printf("%-20s %s\n", count.Category, humanize.Comma(count.Count))
		}

	case "rescan":
		if len(args) != 1 {
			return fmt.Errorf("%w: rescan requires a project path", ErrMissingArguments)
		}

		report, err := ctx.Orchestrator.Rescan(background, args[0])

		if err != nil {
			return err
		}

		printReport("Rescanned "+args[0], report)

	case "commit":
		if len(args) < 1 {
			return fmt.Errorf("%w: commit requires a set path", ErrMissingArguments)
		}

		result, err := ctx.Orchestrator.Commit(background, args[0], strings.Join(args[1:], " "))

		if err != nil {
			return err
		}

		if result.Skipped {
			utils.ConsoleAndLogPrintf("No version written: %s", result.Reason)
		} else {
			utils.ConsoleAndLogPrintf("Version written to %s", result.Item.Path)
		}

	case "versions":
		if len(args) != 1 {
			return fmt.Errorf("%w: versions requires a set path", ErrMissingArguments)
		}

		versions, err := ctx.Orchestrator.Versions(background, args[0])

		if err != nil {
			return err
		}

		utils.PrintFormattedTitle(fmt.Sprintf("%s of %s", utils.Pluralize("version", int64(len(versions))), args[0]))

		for _, version := range versions {
			fmt.Printf("%s  %s  %s\n", scanner.FormatTimestamp(*version.FileModifiedAt), humanize.Time(*version.FileModifiedAt), version.Comment)
		}

	case "extract_register":
		if len(args) != 4 {
			return fmt.Errorf("%w: extract_register requires a project, a subproject, a source set and a track id", ErrMissingArguments)
		}

		trackID, err := strconv.Atoi(args[3])

		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTrackID, args[3])
		}

		report, err := ctx.Orchestrator.RegisterSubproject(background, args[0], args[1], args[2], trackID)

		if err != nil {
			return err
		}

		printReport("Registered "+args[1], report)

	case "orphans":
		if len(args) != 1 {
			return fmt.Errorf("%w: orphans requires a project path", ErrMissingArguments)
		}

		count, err := ctx.Orchestrator.SyncOrphans(background, args[0])

		if err != nil {
			return err
		}

		utils.ConsoleAndLogPrintf("Recorded %s", utils.Pluralize("orphaned version", int64(count)))

	case "watch":
		if len(args) != 1 {
			return fmt.Errorf("%w: watch requires a project path", ErrMissingArguments)
		}

		_, err := ctx.Orchestrator.Open(background, args[0])

		if err != nil {
			return err
		}

		watchContext, stop := signal.NotifyContext(background, os.Interrupt, syscall.SIGTERM)
		defer stop()

		utils.ConsoleAndLogPrintf("Watching %s, press Ctrl+C to stop", args[0])

		return ctx.Orchestrator.Watch(watchContext, args[0])
	}

	return nil
}

func printReport(title string, report *orchestrator.Report) {
	utils.PrintFormattedTitle(title)

	if report.FullScan {
		fmt.Println("Full scan")
	}

	fmt.Printf("New:       %s\n", humanize.Comma(int64(report.New)))
	fmt.Printf("Changed:   %s\n", humanize.Comma(int64(report.Changed)))
	fmt.Printf("Deleted:   %s\n", humanize.Comma(int64(report.Deleted)))
	fmt.Printf("Parsed:    %s (%s failed)\n", humanize.Comma(int64(report.Parsed)), humanize.Comma(int64(report.ParseFailed)))
	fmt.Printf("Versions:  %s (%s failed)\n", humanize.Comma(int64(report.Versions)), humanize.Comma(int64(report.VersionErrors)))
	fmt.Printf("Linked:    %s\n", humanize.Comma(int64(report.Linked)))
	fmt.Printf("Orphans:   %s\n", humanize.Comma(int64(report.Orphans)))
}
