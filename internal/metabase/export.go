package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Category is one kind of exported object.
type Category string

const (
	Dashboards  Category = "dashboards"
	Collections Category = "collections"
	Cards       Category = "cards"
)

// Categories lists export categories in the order they are processed.
var Categories = []Category{Dashboards, Collections, Cards}

// CategoryReport counts the outcome for one category.
type CategoryReport struct {
	Listed   int  `json:"listed"`
	Exported int  `json:"exported"`
	Failed   int  `json:"failed"`
	Skipped  int  `json:"skipped"`
	ListOK   bool `json:"listOk"`
}

// Report summarises an export run.
type Report struct {
	Dir        string                      `json:"dir"`
	Categories map[Category]CategoryReport `json:"categories"`
}

// Failed reports whether any item or listing failed.
func (r Report) Failed() bool {
	for _, c := range r.Categories {
		if c.Failed > 0 || !c.ListOK {
			return true
		}
	}
	return false
}

// Exporter writes a timestamped snapshot of a Metabase instance to disk.
type Exporter struct {
	Client    *Client
	Username  string
	Password  string
	OutputDir string
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

type item struct {
	ID   string
	Name string
}

// Run logs in, then lists and exports every category. Login failure is
// returned before anything touches the filesystem. Everything after that is
// best effort: a failing list or item is logged, counted and skipped.
func (e *Exporter) Run(ctx context.Context) (Report, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := e.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log.Info("logging in to metabase", "url", e.Client.BaseURL)
	if err := e.Client.Login(ctx, e.Username, e.Password); err != nil {
		return Report{}, err
	}

	dir := filepath.Join(e.OutputDir, "metabase_export_"+clock.Now().Format("20060102_150405"))
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, string(c)), 0o755); err != nil {
			return Report{}, fmt.Errorf("create export directory: %w", err)
		}
	}

	report := Report{Dir: dir, Categories: make(map[Category]CategoryReport, len(Categories))}
	for _, c := range Categories {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Categories[c] = e.exportCategory(ctx, log, dir, c)
	}

	log.Info("metabase export complete", "dir", dir)
	return report, nil
}

func (e *Exporter) exportCategory(ctx context.Context, log *slog.Logger, dir string, c Category) CategoryReport {
	log = log.With("category", string(c))
	var rep CategoryReport

	list, err := e.list(ctx, c)
	if err != nil {
		log.Error("list failed", "error", err)
		list = json.RawMessage("[]")
	} else {
		rep.ListOK = true
	}

	if err := writeJSON(filepath.Join(dir, string(c)+"_list.json"), list); err != nil {
		log.Error("write listing failed", "error", err)
		rep.ListOK = false
	}

	items, err := parseItems(list)
	if err != nil {
		log.Error("unexpected listing shape", "error", err)
		rep.ListOK = false
		return rep
	}
	rep.Listed = len(items)

	for _, it := range items {
		if ctx.Err() != nil {
			rep.Failed += rep.Listed - rep.Exported - rep.Failed - rep.Skipped
			break
		}
		log.Info("exporting", "id", it.ID, "name", it.Name)

		data, err := e.detail(ctx, c, it.ID)
		if err != nil {
			log.Error("export failed", "id", it.ID, "error", err)
			rep.Failed++
			continue
		}
		if isEmpty(data) {
			log.Warn("empty response, skipping", "id", it.ID)
			rep.Skipped++
			continue
		}

		path := filepath.Join(dir, string(c), FileName(it.ID, it.Name))
		if err := writeJSON(path, data); err != nil {
			log.Error("write failed", "id", it.ID, "error", err)
			rep.Failed++
			continue
		}
		rep.Exported++
	}
	return rep
}

func (e *Exporter) list(ctx context.Context, c Category) (json.RawMessage, error) {
	switch c {
	case Dashboards:
		return e.Client.ListDashboards(ctx)
	case Collections:
		return e.Client.ListCollections(ctx)
	case Cards:
		return e.Client.ListCards(ctx)
	}
	return nil, fmt.Errorf("unknown category %q", c)
}

func (e *Exporter) detail(ctx context.Context, c Category, id string) (json.RawMessage, error) {
	switch c {
	case Dashboards:
		return e.Client.GetDashboard(ctx, id)
	case Collections:
		return e.Client.GetCollectionItems(ctx, id)
	case Cards:
		return e.Client.GetCard(ctx, id)
	}
	return nil, fmt.Errorf("unknown category %q", c)
}

// parseItems reads id and name from each element of a listing. Ids may be
// numbers or strings ("root" for the root collection).
func parseItems(list json.RawMessage) ([]item, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(list, &raw); err != nil {
		return nil, err
	}

	items := make([]item, 0, len(raw))
	for _, r := range raw {
		var head struct {
			ID   json.RawMessage `json:"id"`
			Name string          `json:"name"`
		}
		if err := json.Unmarshal(r, &head); err != nil || len(head.ID) == 0 || string(head.ID) == "null" {
			continue
		}
		id := string(head.ID)
		var s string
		if json.Unmarshal(head.ID, &s) == nil {
			id = s
		}
		items = append(items, item{ID: id, Name: head.Name})
	}
	return items, nil
}

// writeJSON re-indents data with two spaces. Non-ASCII text is written as is.
func writeJSON(path string, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func isEmpty(data json.RawMessage) bool {
	switch strings.TrimSpace(string(data)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}
