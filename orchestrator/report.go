package orchestrator

import (
	"fmt"
	"github.com/dustin/go-humanize"
)

// Report summarizes one synchronization pass.
type Report struct {
	FullScan      bool
	New           int
	Changed       int
	Deleted       int
	Parsed        int
	ParseFailed   int
	Versions      int
	VersionErrors int
	Linked        int
	Orphans       int
}

func (r *Report) String() string {
	return fmt.Sprintf("%s new, %s changed, %s deleted, %s parsed (%s failed), %s versions (%s failed), %s linked, %s orphans",
		humanize.Comma(int64(r.New)),
		humanize.Comma(int64(r.Changed)),
		humanize.Comma(int64(r.Deleted)),
		humanize.Comma(int64(r.Parsed)),
		humanize.Comma(int64(r.ParseFailed)),
		humanize.Comma(int64(r.Versions)),
		humanize.Comma(int64(r.VersionErrors)),
		humanize.Comma(int64(r.Linked)),
		humanize.Comma(int64(r.Orphans)))
}
