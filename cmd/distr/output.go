package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// render writes v as indented JSON, or calls text with a tab-aligned writer.
func render(w io.Writer, format string, v any, text func(w io.Writer)) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func writeApplications(w io.Writer, apps []domain.Application) {
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tVERSIONS")
	for _, a := range apps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", a.ID, a.Name, a.Type, len(a.Versions))
	}
}

func writeTargets(w io.Writer, targets []domain.DeploymentTarget) {
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tAPPLICATION\tVERSION")
	for _, t := range targets {
		application, version := "", ""
		if d := t.CurrentDeployment(); d != nil {
			application = d.ApplicationID
			if d.ApplicationName != "" {
				application = d.ApplicationName
			}
			version = d.ApplicationVersionID
			if d.ApplicationVersionName != "" {
				version = d.ApplicationVersionName
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, orDash(application), orDash(version))
	}
}

func writeVersions(w io.Writer, versions []domain.ApplicationVersion) {
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Name, orDash(v.CreatedAt))
	}
}

func writeStatuses(w io.Writer, statuses []domain.DeploymentRevisionStatus) {
	fmt.Fprintln(w, "CREATED\tTYPE\tMESSAGE")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\n", orDash(s.CreatedAt), s.Type, oneLine(s.Message))
	}
}

func writeJournal(w io.Writer, entries []domain.JournalEntry) {
	fmt.Fprintln(w, "CREATED\tOPERATION\tOUTCOME\tTARGET\tVERSION\tMESSAGE")
	for _, e := range entries {
		message := e.Message
		if e.Step != "" {
			message = e.Step + ": " + message
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.Operation,
			e.Outcome,
			orDash(e.DeploymentTargetID),
			orDash(e.ApplicationVersionID),
			oneLine(message),
		)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
