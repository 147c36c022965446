package main

import (
	"set-tools/config"
	"set-tools/orchestrator"
)

type Context struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
}
