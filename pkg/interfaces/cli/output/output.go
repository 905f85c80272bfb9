package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/shopspring/decimal"

	"github.com/vsinha/needslist/pkg/application/services/planning"
	"github.com/vsinha/needslist/pkg/domain/entities"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string // when set, results are written to a file here instead of w
	Verbose   bool
}

// Validate checks the format name
func (c Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, FormatCSV:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (expected text, json or csv)", c.Format)
	}
}

// Calculation renders a calculated and allocated plan
func Calculation(w io.Writer, plan *planning.Plan, config Config) error {
	return emit(w, "calculation", config, func(buf *bytes.Buffer) error {
		switch config.Format {
		case FormatJSON:
			return writeJSON(buf, plan.Result)
		case FormatCSV:
			return writeLinesCSV(buf, plan.Result.Lines)
		default:
			writeCalculationText(buf, plan)
			return nil
		}
	})
}

// NeedsList renders one list with its lines
func NeedsList(w io.Writer, list *entities.NeedsList, config Config) error {
	return emit(w, "needs_list_"+string(list.ID), config, func(buf *bytes.Buffer) error {
		switch config.Format {
		case FormatJSON:
			return writeJSON(buf, list)
		case FormatCSV:
			return writeLinesCSV(buf, list.Items)
		default:
			writeNeedsListText(buf, list)
			return nil
		}
	})
}

// NeedsLists renders a list summary table
func NeedsLists(w io.Writer, lists []*entities.NeedsList, config Config) error {
	return emit(w, "needs_lists", config, func(buf *bytes.Buffer) error {
		switch config.Format {
		case FormatJSON:
			return writeJSON(buf, lists)
		case FormatCSV:
			rows := [][]string{{"id", "event_id", "warehouses", "phase", "status", "version", "lines", "total_gap", "method", "tier", "created_by"}}
			for _, l := range lists {
				rows = append(rows, []string{
					string(l.ID), string(l.EventID), joinWarehouses(l.WarehouseIDs), string(l.Phase), string(l.Status),
					fmt.Sprint(l.Version), fmt.Sprint(len(l.Items)), l.TotalGap().String(), string(l.SelectedMethod),
					tierOf(l), l.CreatedBy,
				})
			}
			return writeCSV(buf, rows)
		default:
			fmt.Fprintf(buf, "%-38s %-14s %-10s %-14s %-4s %-6s %-10s\n", "ID", "Event", "Phase", "Status", "Ver", "Lines", "Total Gap")
			fmt.Fprintf(buf, "%-38s %-14s %-10s %-14s %-4s %-6s %-10s\n",
				strings.Repeat("-", 38), strings.Repeat("-", 14), strings.Repeat("-", 10), strings.Repeat("-", 14), "----", "------", "----------")
			for _, l := range lists {
				fmt.Fprintf(buf, "%-38s %-14s %-10s %-14s %-4d %-6d %-10s\n",
					l.ID, l.EventID, l.Phase, l.Status, l.Version, len(l.Items), l.TotalGap())
			}
			return nil
		}
	})
}

// Audit renders audit entries in sequence order
func Audit(w io.Writer, entries []entities.AuditEntry, config Config) error {
	return emit(w, "audit", config, func(buf *bytes.Buffer) error {
		switch config.Format {
		case FormatJSON:
			return writeJSON(buf, entries)
		case FormatCSV:
			rows := [][]string{{"sequence", "needs_list_id", "action", "warehouse_id", "item_id", "field", "old_value", "new_value", "reason_code", "reason", "actor", "at"}}
			for _, e := range entries {
				rows = append(rows, []string{
					fmt.Sprint(e.Sequence), string(e.NeedsListID), string(e.Action), string(e.WarehouseID), string(e.ItemID),
					e.Field, e.OldValue, e.NewValue, e.ReasonCode, e.Reason, e.Actor, e.At.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
			return writeCSV(buf, rows)
		default:
			for _, e := range entries {
				fmt.Fprintf(buf, "#%-5d %s %-18s %-12s", e.Sequence, e.At.Format("2006-01-02 15:04"), e.Action, e.Actor)
				if e.ItemID != "" {
					fmt.Fprintf(buf, " %s@%s", e.ItemID, e.WarehouseID)
				}
				if e.Field != "" {
					fmt.Fprintf(buf, " %s: %q -> %q", e.Field, e.OldValue, e.NewValue)
				}
				if e.Reason != "" {
					fmt.Fprintf(buf, " (%s)", e.Reason)
				}
				buf.WriteString("\n")
				for _, d := range e.Details {
					fmt.Fprintf(buf, "       %s@%s %s: %q -> %q\n", d.ItemID, d.WarehouseID, d.Field, d.OldValue, d.NewValue)
				}
			}
			return nil
		}
	})
}

// Conflicts renders the active lists blocking a generation
func Conflicts(w io.Writer, conflicts []entities.Conflict, config Config) error {
	return emit(w, "conflicts", config, func(buf *bytes.Buffer) error {
		switch config.Format {
		case FormatJSON:
			return writeJSON(buf, conflicts)
		case FormatCSV:
			rows := [][]string{{"needs_list_id", "status", "created_by", "submitted_by", "warehouse_id", "item_id"}}
			for _, c := range conflicts {
				for _, k := range c.OverlappingItems {
					rows = append(rows, []string{string(c.NeedsListID), string(c.Status), c.CreatedBy, c.SubmittedBy, string(k.WarehouseID), string(k.ItemID)})
				}
			}
			return writeCSV(buf, rows)
		default:
			fmt.Fprintf(buf, "Scope already covered by %d active needs list(s):\n", len(conflicts))
			for _, c := range conflicts {
				fmt.Fprintf(buf, "  %s  %-14s created by %s", c.NeedsListID, c.Status, c.CreatedBy)
				if c.SubmittedBy != "" {
					fmt.Fprintf(buf, ", submitted by %s", c.SubmittedBy)
				}
				fmt.Fprintf(buf, ", %d overlapping line(s)\n", len(c.OverlappingItems))
			}
			return nil
		}
	})
}

// emit renders into a buffer and then either copies it to w or writes it
// atomically to OutputDir
func emit(w io.Writer, name string, config Config, render func(*bytes.Buffer) error) error {
	if err := config.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if config.OutputDir == "" {
		_, err := w.Write(buf.Bytes())
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name+extension(config.Format))
	if err := renameio.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if config.Verbose {
		fmt.Fprintf(w, "Results saved to: %s\n", filename)
	}
	return nil
}

func extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	default:
		return ".txt"
	}
}

func writeJSON(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func writeCSV(buf *bytes.Buffer, rows [][]string) error {
	cw := csv.NewWriter(buf)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

var lineHeader = []string{
	"warehouse_id", "item_id", "available_qty", "inbound_qty", "burn_rate", "burn_rate_source", "freshness",
	"time_to_stockout_hours", "severity", "required_qty", "gap_qty", "surplus_qty",
	"horizon_a_qty", "horizon_a_source", "residual_after_a", "horizon_b_qty", "residual_after_b", "horizon_c_qty",
	"override_qty", "override_reason", "fulfilled_qty", "fulfillment_status",
}

func writeLinesCSV(buf *bytes.Buffer, lines []entities.NeedsListItem) error {
	rows := [][]string{lineHeader}
	for i := range lines {
		l := &lines[i]
		override, reason := "", ""
		if l.Override != nil {
			override, reason = l.Override.Quantity.String(), l.Override.Reason
		}
		rows = append(rows, []string{
			string(l.WarehouseID), string(l.ItemID), l.AvailableQty.String(), l.InboundQty.String(),
			l.BurnRate.String(), string(l.BurnRateSource), string(l.Freshness),
			optional(l.TimeToStockout), l.Severity.String(), l.RequiredQty.String(), l.GapQty.String(), l.SurplusQty.String(),
			l.HorizonAQty.String(), string(l.SourceWarehouse()), l.ResidualAfterA.String(),
			l.HorizonBQty.String(), l.ResidualAfterB.String(), l.HorizonCQty.String(),
			override, reason, l.FulfilledQty.String(), string(l.FulfillmentStatus),
		})
	}
	return writeCSV(buf, rows)
}

func writeCalculationText(buf *bytes.Buffer, plan *planning.Plan) {
	r := plan.Result
	fmt.Fprintf(buf, "Needs Calculation: %s  phase %s  as of %s\n", r.EventID, r.Phase, r.AsOf.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(buf, "Warehouses: %s\n", joinWarehouses(r.WarehouseIDs))
	fmt.Fprintf(buf, "Window: demand %dh, planning %dh, safety x%s\n\n",
		r.Parameters.DemandWindowHours, r.Parameters.PlanningWindowHours, r.Parameters.SafetyFactor)

	writeLinesText(buf, r.Lines)

	a := plan.Allocation
	fmt.Fprintf(buf, "\nTotal gap %s: transfers %s, donations %s, procurement %s (%.0f%% covered without procurement)\n",
		a.TotalGap, a.HorizonA, a.HorizonB, a.HorizonC, a.CoverageRatio()*100)
	if r.Approval != nil {
		fmt.Fprintf(buf, "Method %s, estimated cost %s, approval %s by %s\n",
			r.SelectedMethod, r.EstimatedCost.StringFixed(2), r.Approval.Tier, r.Approval.Role)
	}
	writeWarnings(buf, r.Warnings)
}

func writeNeedsListText(buf *bytes.Buffer, list *entities.NeedsList) {
	fmt.Fprintf(buf, "Needs List %s  [%s]  version %d\n", list.ID, list.Status, list.Version)
	fmt.Fprintf(buf, "Event %s  phase %s  warehouses %s\n", list.EventID, list.Phase, joinWarehouses(list.WarehouseIDs))
	fmt.Fprintf(buf, "Created by %s at %s\n", list.CreatedBy, list.CreatedAt.Format("2006-01-02 15:04"))
	if list.SubmittedBy != "" {
		fmt.Fprintf(buf, "Submitted by %s\n", list.SubmittedBy)
	}
	if list.ApprovedBy != "" {
		fmt.Fprintf(buf, "Approved by %s\n", list.ApprovedBy)
	}
	for _, reason := range []struct{ label, text string }{
		{"Rejected", list.RejectionReason},
		{"Escalated", list.EscalationReason},
		{"Returned", list.ReturnReason},
		{"Cancelled", list.CancelReason},
	} {
		if reason.text != "" {
			fmt.Fprintf(buf, "%s: %s\n", reason.label, reason.text)
		}
	}
	if list.SupersededBy != nil {
		fmt.Fprintf(buf, "Superseded by %s\n", *list.SupersededBy)
	}
	buf.WriteString("\n")
	writeLinesText(buf, list.Items)
	fmt.Fprintf(buf, "\nMethod %s, estimated cost %s, approval %s\n", list.SelectedMethod, list.EstimatedCost.StringFixed(2), tierOf(list))
	for _, c := range list.ReviewComments {
		if c.ItemID != "" {
			fmt.Fprintf(buf, "Comment on %s@%s by %s: %s\n", c.ItemID, c.WarehouseID, c.Actor, c.Comment)
			continue
		}
		fmt.Fprintf(buf, "Comment by %s: %s\n", c.Actor, c.Comment)
	}
	writeWarnings(buf, list.Warnings)
}

func writeLinesText(buf *bytes.Buffer, lines []entities.NeedsListItem) {
	fmt.Fprintf(buf, "%-14s %-12s %-9s %-9s %-10s %-10s %-8s %-9s %-9s %-9s %-9s %-9s\n",
		"Warehouse", "Item", "Avail", "Inbound", "Burn/h", "Source", "TTS(h)", "Severity", "Gap", "A", "B", "C")
	fmt.Fprintf(buf, "%-14s %-12s %-9s %-9s %-10s %-10s %-8s %-9s %-9s %-9s %-9s %-9s\n",
		strings.Repeat("-", 14), strings.Repeat("-", 12), "---------", "---------", "----------", "----------",
		"--------", "---------", "---------", "---------", "---------", "---------")
	for i := range lines {
		l := &lines[i]
		source := string(l.BurnRateSource)
		if l.NoCurrentDemand {
			source = "NO_DEMAND"
		}
		gap := l.GapQty.String()
		if l.Override != nil {
			gap += "*"
		}
		fmt.Fprintf(buf, "%-14s %-12s %-9s %-9s %-10s %-10s %-8s %-9s %-9s %-9s %-9s %-9s\n",
			l.WarehouseID, l.ItemID, l.AvailableQty, l.InboundQty, l.BurnRate, source,
			optional(l.TimeToStockout), l.Severity, gap, l.HorizonAQty, l.HorizonBQty, l.HorizonCQty)
	}
}

func writeWarnings(buf *bytes.Buffer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(buf, "\nWarnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(buf, "  - %s\n", w)
	}
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func joinWarehouses(ids []entities.WarehouseID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func tierOf(list *entities.NeedsList) string {
	if list.Approval == nil {
		return ""
	}
	return list.Approval.Tier + "/" + list.Approval.Role
}
