/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/activity"
)

// render writes v as JSON or YAML, or hands a table writer to fill for the
// table format.
func render(w io.Writer, v any, fill func(table.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		fill(tw)
		tw.Render()
		return nil
	}
}

func renderTasks(w io.Writer, tasks []v1alpha1.Task) error {
	if len(tasks) == 0 && outputFormat == "table" {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}
	return render(w, tasks, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Agent", "Status", "Description", "Result", "Age"})
		for _, t := range tasks {
			tw.AppendRow(table.Row{t.ID, t.Agent, t.Status, truncate(t.Description, 48), truncate(t.Result, 32), formatAge(t.CreatedAt)})
		}
	})
}

func renderMessages(w io.Writer, msgs []v1alpha1.Communication) error {
	if len(msgs) == 0 && outputFormat == "table" {
		_, err := fmt.Fprintln(w, "No messages found.")
		return err
	}
	return render(w, msgs, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "From", "To", "Type", "Message", "Age"})
		for _, m := range msgs {
			tw.AppendRow(table.Row{m.ID, m.From, m.To, m.Type, truncate(m.Message, 60), formatAge(m.Timestamp)})
		}
	})
}

func renderStates(w io.Writer, states []v1alpha1.ProjectState) error {
	return render(w, states, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"Version", "Phase", "Current", "Completed", "Blockers", "Next", "Updated"})
		for _, s := range states {
			tw.AppendRow(table.Row{
				s.Version, s.Phase,
				strings.Join(s.CurrentTasks, ", "), strings.Join(s.CompletedTasks, ", "),
				strings.Join(s.Blockers, ", "), strings.Join(s.NextActions, ", "),
				formatAge(s.LastUpdated),
			})
		}
	})
}

// renderState writes one snapshot: an object for json and yaml, a one-row
// table otherwise.
func renderState(w io.Writer, st v1alpha1.ProjectState) error {
	if outputFormat == "json" || outputFormat == "yaml" {
		return render(w, st, nil)
	}
	return renderStates(w, []v1alpha1.ProjectState{st})
}

func renderActivity(w io.Writer, entries []activity.Entry) error {
	return render(w, entries, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"At", "Agent", "Action", "Level", "Details"})
		for _, e := range entries {
			details, _ := json.Marshal(e.Details)
			tw.AppendRow(table.Row{e.At.Format(time.RFC3339), e.Agent, e.Action, e.Level, truncate(string(details), 60)})
		}
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d.Hours() >= 24 {
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
	if d.Hours() >= 1 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if d.Minutes() >= 1 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
