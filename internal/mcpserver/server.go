// Package mcpserver exposes the mapping store as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
)

const (
	ServerName = "stmap"

	ToolListMappings   = "list_mappings"
	ToolSearchMappings = "search_mappings"
	ToolMappingTree    = "mapping_tree"
	ToolStatistics     = "mapping_statistics"
	ToolAddMapping     = "add_mapping"
	ToolEditMapping    = "edit_mapping"
	ToolDeleteMapping  = "delete_mapping"
)

type MappingService interface {
	List(ctx context.Context) ([]domainmapping.Mapping, error)
	Search(ctx context.Context, term string) ([]domainmapping.Mapping, error)
	ByTargetTable(ctx context.Context, table string) ([]domainmapping.Mapping, error)
	BySourceTable(ctx context.Context, table string) ([]domainmapping.Mapping, error)
	GroupByTarget(ctx context.Context) ([]domainmapping.Group, error)
	Statistics(ctx context.Context) (domainmapping.Statistics, error)
	Add(ctx context.Context, fields domainmapping.Fields) (domainmapping.Mapping, error)
	Edit(ctx context.Context, id string, fields domainmapping.Fields) (domainmapping.Mapping, error)
	Delete(ctx context.Context, id string) error
}

type MappingView struct {
	ID             string `json:"id"`
	TargetTable    string `json:"targetTable"`
	TargetField    string `json:"targetField"`
	SourceTable    string `json:"sourceTable"`
	SourceField    string `json:"sourceField"`
	Transformation string `json:"transformation"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

type MappingList struct {
	Mappings []MappingView `json:"mappings"`
}

type GroupView struct {
	TargetTable string        `json:"targetTable"`
	Mappings    []MappingView `json:"mappings"`
}

type Tree struct {
	Groups []GroupView `json:"groups"`
}

type DeleteResult struct {
	Deleted string `json:"deleted"`
}

type ListInput struct {
	Target string `json:"target,omitempty" jsonschema:"only mappings into this target table"`
	Source string `json:"source,omitempty" jsonschema:"only mappings from this source table"`
}

type SearchInput struct {
	Term string `json:"term" jsonschema:"case-insensitive text matched against tables, fields, transformation and notes"`
}

type NoInput struct{}

type FieldsInput struct {
	TargetTable    string `json:"targetTable" jsonschema:"target table name"`
	TargetField    string `json:"targetField" jsonschema:"target field name"`
	SourceTable    string `json:"sourceTable" jsonschema:"source table name"`
	SourceField    string `json:"sourceField" jsonschema:"source field name"`
	Transformation string `json:"transformation,omitempty" jsonschema:"transformation logic applied to the source field"`
	Notes          string `json:"notes,omitempty" jsonschema:"free-text notes"`
}

type EditInput struct {
	ID             string `json:"id" jsonschema:"id of the mapping to overwrite"`
	TargetTable    string `json:"targetTable" jsonschema:"target table name"`
	TargetField    string `json:"targetField" jsonschema:"target field name"`
	SourceTable    string `json:"sourceTable" jsonschema:"source table name"`
	SourceField    string `json:"sourceField" jsonschema:"source field name"`
	Transformation string `json:"transformation,omitempty" jsonschema:"transformation logic applied to the source field"`
	Notes          string `json:"notes,omitempty" jsonschema:"free-text notes"`
}

type DeleteInput struct {
	ID string `json:"id" jsonschema:"id of the mapping to delete"`
}

// New registers every tool on a fresh server. base supplies the logger for tool calls.
func New(base context.Context, svc MappingService, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	t := &tools{svc: svc, base: logging.WithComponent(base, "mcpserver")}

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListMappings,
		Description: "List mappings in insertion order, optionally filtered by target or source table.",
	}, t.list)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSearchMappings,
		Description: "Search mappings by case-insensitive substring across all text fields.",
	}, t.search)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolMappingTree,
		Description: "Mappings grouped by target table, groups sorted alphabetically.",
	}, t.tree)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolStatistics,
		Description: "Distinct target and source table counts plus the mapping total.",
	}, t.statistics)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAddMapping,
		Description: "Add a source-to-target mapping. Table and field names are upper-cased.",
	}, t.add)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEditMapping,
		Description: "Overwrite every editable field of an existing mapping.",
	}, t.edit)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolDeleteMapping,
		Description: "Delete a mapping by id.",
	}, t.remove)

	return server
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client disconnects.
func Run(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return errs.Wrap(err, "run mcp stdio server")
	}
	return nil
}

type tools struct {
	svc  MappingService
	base context.Context
}

// callContext keeps the request's cancellation and adds the server's logger.
func (t *tools) callContext(ctx context.Context, tool string) context.Context {
	ctx = logging.WithLogger(ctx, logging.Logger(t.base))
	ctx = logging.WithAttrs(ctx, logging.Attrs(t.base)...)
	ctx = logging.WithAttrs(ctx, slog.String("tool", tool))
	logging.Debug(ctx, "mcp tool called")
	return ctx
}

func (t *tools) list(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, MappingList, error) {
	ctx = t.callContext(ctx, ToolListMappings)

	var (
		items []domainmapping.Mapping
		err   error
	)
	switch {
	case strings.TrimSpace(in.Target) != "" && strings.TrimSpace(in.Source) != "":
		err = &domainmapping.ValidationError{Reason: "target and source filters are mutually exclusive"}
	case strings.TrimSpace(in.Target) != "":
		items, err = t.svc.ByTargetTable(ctx, in.Target)
	case strings.TrimSpace(in.Source) != "":
		items, err = t.svc.BySourceTable(ctx, in.Source)
	default:
		items, err = t.svc.List(ctx)
	}
	if err != nil {
		return nil, MappingList{}, err
	}
	return nil, MappingList{Mappings: viewsOf(items)}, nil
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, MappingList, error) {
	ctx = t.callContext(ctx, ToolSearchMappings)

	items, err := t.svc.Search(ctx, in.Term)
	if err != nil {
		return nil, MappingList{}, err
	}
	return nil, MappingList{Mappings: viewsOf(items)}, nil
}

func (t *tools) tree(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, Tree, error) {
	ctx = t.callContext(ctx, ToolMappingTree)

	groups, err := t.svc.GroupByTarget(ctx)
	if err != nil {
		return nil, Tree{}, err
	}

	out := Tree{Groups: make([]GroupView, 0, len(groups))}
	for _, group := range groups {
		out.Groups = append(out.Groups, GroupView{TargetTable: group.TargetTable, Mappings: viewsOf(group.Mappings)})
	}
	return nil, out, nil
}

func (t *tools) statistics(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, domainmapping.Statistics, error) {
	ctx = t.callContext(ctx, ToolStatistics)

	stats, err := t.svc.Statistics(ctx)
	if err != nil {
		return nil, domainmapping.Statistics{}, err
	}
	return nil, stats, nil
}

func (t *tools) add(ctx context.Context, _ *mcp.CallToolRequest, in FieldsInput) (*mcp.CallToolResult, MappingView, error) {
	ctx = t.callContext(ctx, ToolAddMapping)

	created, err := t.svc.Add(ctx, in.fields())
	if err != nil {
		return nil, MappingView{}, err
	}
	return nil, viewOf(created), nil
}

func (t *tools) edit(ctx context.Context, _ *mcp.CallToolRequest, in EditInput) (*mcp.CallToolResult, MappingView, error) {
	ctx = t.callContext(ctx, ToolEditMapping)

	edited, err := t.svc.Edit(ctx, in.ID, domainmapping.Fields{
		TargetTable:    in.TargetTable,
		TargetField:    in.TargetField,
		SourceTable:    in.SourceTable,
		SourceField:    in.SourceField,
		Transformation: in.Transformation,
		Notes:          in.Notes,
	})
	if err != nil {
		return nil, MappingView{}, err
	}
	return nil, viewOf(edited), nil
}

func (t *tools) remove(ctx context.Context, _ *mcp.CallToolRequest, in DeleteInput) (*mcp.CallToolResult, DeleteResult, error) {
	ctx = t.callContext(ctx, ToolDeleteMapping)

	if err := t.svc.Delete(ctx, in.ID); err != nil {
		return nil, DeleteResult{}, err
	}
	return nil, DeleteResult{Deleted: strings.TrimSpace(in.ID)}, nil
}

func (in FieldsInput) fields() domainmapping.Fields {
	return domainmapping.Fields{
		TargetTable:    in.TargetTable,
		TargetField:    in.TargetField,
		SourceTable:    in.SourceTable,
		SourceField:    in.SourceField,
		Transformation: in.Transformation,
		Notes:          in.Notes,
	}
}

func viewOf(item domainmapping.Mapping) MappingView {
	view := MappingView{
		ID:             item.ID,
		TargetTable:    item.TargetTable,
		TargetField:    item.TargetField,
		SourceTable:    item.SourceTable,
		SourceField:    item.SourceField,
		Transformation: item.Transformation,
		Notes:          item.Notes,
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.UpdatedAt != nil {
		view.UpdatedAt = item.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func viewsOf(items []domainmapping.Mapping) []MappingView {
	views := make([]MappingView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	return views
}
