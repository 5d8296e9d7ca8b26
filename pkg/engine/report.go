package engine

import (
	"sort"
	"strings"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/codegen"
	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
	"github.com/bindweld/bindweld/pkg/names"
)

// Stats carries per-phase timings for one run.
type Stats struct {
	DirectiveTimeMs  int64 `json:"directive_ms"`
	LoadTimeMs       int64 `json:"load_ms"`
	ExtractionTimeMs int64 `json:"extraction_ms"`
	ModelTimeMs      int64 `json:"model_ms"`
	ClassifyTimeMs   int64 `json:"classify_ms"`
	NamingTimeMs     int64 `json:"naming_ms"`
	CodegenTimeMs    int64 `json:"codegen_ms"`
	TotalTimeMs      int64 `json:"total_ms"`
	CacheHit         bool  `json:"cache_hit"`
}

// ArtifactPaths names the written artifact pair.
type ArtifactPaths struct {
	Bridge     string `json:"bridge"`
	ShimHeader string `json:"shim_header"`
	ShimSource string `json:"shim_source"`
}

// EntitySummary is one row of the generation report.
type EntitySummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	FlatName   string `json:"flat_name,omitempty"`
	Verdict    string `json:"verdict,omitempty"`
	Provenance string `json:"provenance,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
}

// Report is the queryable summary of one generation run.
type Report struct {
	ModName    string          `json:"mod_name"`
	Directives string          `json:"directives"`
	Entities   []EntitySummary `json:"entities"`
	Stubs      []codegen.Stub  `json:"stubs,omitempty"`
	Artifacts  ArtifactPaths   `json:"artifacts"`
	Stats      Stats           `json:"stats"`
}

func (r *Report) fillEntities(api *model.API, classes *classify.Table, table *names.Table) {
	for _, e := range api.All() {
		s := EntitySummary{
			Name:       e.Name.String(),
			Kind:       e.Kind.String(),
			Provenance: e.Prov.String(),
			File:       e.Loc.File,
			Line:       int(e.Loc.Line),
		}
		switch e.Kind {
		case model.EntityFunction:
			s.FlatName = table.FunctionName(e.ID)
		case model.EntityRecord:
			s.FlatName = table.TypeName(e.ID)
			s.Verdict = classes.Of(e.ID).Verdict.String()
		default:
			s.FlatName = table.TypeName(e.ID)
		}
		r.Entities = append(r.Entities, s)
	}
	sort.SliceStable(r.Entities, func(i, j int) bool {
		return r.Entities[i].Name < r.Entities[j].Name
	})
}

// fillEntitiesFromRaw summarizes extraction output for parse_only
// runs, where no model is ever built.
func (r *Report) fillEntitiesFromRaw(decls *extract.Result) {
	for i := range decls.Functions {
		fn := &decls.Functions[i]
		r.Entities = append(r.Entities, EntitySummary{
			Name: fn.Name, Kind: "function", File: fn.Loc.File, Line: int(fn.Loc.Line),
		})
	}
	for i := range decls.Records {
		rec := &decls.Records[i]
		r.Entities = append(r.Entities, EntitySummary{
			Name: rec.Name, Kind: "record", File: rec.Loc.File, Line: int(rec.Loc.Line),
		})
	}
	for i := range decls.Enums {
		en := &decls.Enums[i]
		r.Entities = append(r.Entities, EntitySummary{
			Name: en.Name, Kind: "enum", File: en.Loc.File, Line: int(en.Loc.Line),
		})
	}
	for i := range decls.Typedefs {
		td := &decls.Typedefs[i]
		r.Entities = append(r.Entities, EntitySummary{
			Name: td.Name, Kind: "typedef", File: td.Loc.File, Line: int(td.Loc.Line),
		})
	}
	sort.SliceStable(r.Entities, func(i, j int) bool {
		return r.Entities[i].Name < r.Entities[j].Name
	})
}

// QueryService answers questions about a finished report. It backs
// both the inspect command and the MCP tools.
type QueryService struct {
	report *Report
}

// NewQueryService wraps a report for querying.
func NewQueryService(report *Report) *QueryService {
	return &QueryService{report: report}
}

// Report returns the underlying report.
func (q *QueryService) Report() *Report { return q.report }

// Entities returns the rows matching the filters; empty filters match
// everything. The name filter is a case-insensitive substring match.
func (q *QueryService) Entities(nameFilter, kindFilter string) []EntitySummary {
	nameFilter = strings.ToLower(nameFilter)
	var out []EntitySummary
	for _, e := range q.report.Entities {
		if kindFilter != "" && e.Kind != kindFilter {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(e.Name), nameFilter) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Lookup finds one entity by exact qualified name.
func (q *QueryService) Lookup(name string) (EntitySummary, bool) {
	for _, e := range q.report.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntitySummary{}, false
}

// Stubs lists every symbol that degraded to a documented placeholder.
func (q *QueryService) Stubs() []codegen.Stub {
	return q.report.Stubs
}
