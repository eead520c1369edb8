package compose

import (
	"fmt"
	"strings"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
)

// UnresolvedTable stands in for the table of a fragment whose terminal
// select named none. It is a quoted identifier no fragment defines, so the
// statement parses but fails when executed.
const UnresolvedTable = `"<no terminal select>"`

// Renderer turns a plan into SQL text.
//
// Output is deterministic: the same plan always renders byte-identical
// text. Identifiers are interpolated as given; callers own quoting.
type Renderer struct {
	// Indent is one level of indentation inside a stage body.
	Indent string
}

// NewRenderer creates a Renderer with four-space indentation.
func NewRenderer() *Renderer {
	return &Renderer{Indent: "    "}
}

// Render renders every stage into one WITH clause followed by
// "select * from <terminal>". Blocks with an empty body are skipped.
func (r *Renderer) Render(p plan.Plan) (string, error) {
	var ctes []string
	for i, s := range p.Stages {
		cte, err := r.renderStage(s)
		if err != nil {
			return "", fmt.Errorf("render stage %d: %w", i, err)
		}
		if cte != "" {
			ctes = append(ctes, cte)
		}
	}

	var sb strings.Builder
	if len(ctes) > 0 {
		sb.WriteString("with\n")
		sb.WriteString(strings.Join(ctes, ",\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("select * from ")
	sb.WriteString(p.Terminal)
	return sb.String(), nil
}

func (r *Renderer) renderStage(s plan.Stage) (string, error) {
	switch st := s.(type) {
	case plan.Block:
		return st.Body, nil
	case *plan.Block:
		return st.Body, nil
	case plan.Exposures:
		return r.renderExposures(st), nil
	case *plan.Exposures:
		return r.renderExposures(*st), nil
	case plan.FactMerge:
		return r.renderFactMerge(st), nil
	case *plan.FactMerge:
		return r.renderFactMerge(*st), nil
	case plan.FinalMerge:
		return r.renderFinalMerge(st), nil
	case *plan.FinalMerge:
		return r.renderFinalMerge(*st), nil
	default:
		return "", fmt.Errorf("unsupported stage type: %T", s)
	}
}

func (r *Renderer) renderExposures(x plan.Exposures) string {
	return r.cte(x.Name,
		[]string{
			fmt.Sprintf("a.%s as %s", x.AssignmentsID, plan.ColRandUnitID),
			fmt.Sprintf("a.%s as %s", x.VariantColumn, plan.ColVariant),
			fmt.Sprintf("a.%s as %s", x.AssignmentsDate, plan.ColFirstAssignmentDate),
			fmt.Sprintf("e.%s as %s", x.EntryPointDate, plan.ColEntryPointDate),
		},
		fmt.Sprintf("from %s a", tableRef(x.AssignmentsTable)),
		fmt.Sprintf("inner join %s e", tableRef(x.EntryPointTable)),
		fmt.Sprintf("on a.%s = e.%s", x.AssignmentsID, x.EntryPointID),
	)
}

func (r *Renderer) renderFactMerge(f plan.FactMerge) string {
	cols := make([]string, 0, len(plan.CanonicalColumns)+len(f.Columns))
	for _, c := range plan.CanonicalColumns {
		cols = append(cols, "e."+c)
	}
	for _, c := range f.Columns {
		cols = append(cols, fmt.Sprintf("coalesce(sum(f.%s), 0) as %s", c, c))
	}

	return r.cte(f.Name, cols,
		fmt.Sprintf("from %s e", f.Exposures),
		fmt.Sprintf("left join %s f", tableRef(f.FactTable)),
		fmt.Sprintf("on e.%s = f.%s and (f.%s >= e.%s or f.%s is null)",
			plan.ColRandUnitID, f.UnitID,
			f.DateColumn, plan.ColEntryPointDate, f.DateColumn),
		"group by 1, 2, 3, 4",
	)
}

func (r *Renderer) renderFinalMerge(m plan.FinalMerge) string {
	cols := append([]string(nil), plan.CanonicalColumns...)
	for _, f := range m.Facts {
		for _, c := range f.Columns {
			cols = append(cols, fmt.Sprintf("%s.%s as %s", f.Name, c, c))
		}
	}

	tail := []string{"from " + m.Exposures}
	using := strings.Join(plan.CanonicalColumns, ", ")
	for _, f := range m.Facts {
		tail = append(tail, fmt.Sprintf("join %s using(%s)", f.Name, using))
	}

	return r.cte(m.Name, cols, tail...)
}

func tableRef(name string) string {
	if name == "" {
		return UnresolvedTable
	}
	return name
}

// cte renders:
//
//	<name> as (
//	    select
//	        <col>,
//	        <col>
//	    <tail line>
//	)
func (r *Renderer) cte(name string, cols []string, tail ...string) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString(" as (\n")
	sb.WriteString(r.Indent)
	sb.WriteString("select\n")
	for i, c := range cols {
		sb.WriteString(r.Indent)
		sb.WriteString(r.Indent)
		sb.WriteString(c)
		if i < len(cols)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	for _, line := range tail {
		sb.WriteString(r.Indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(")")
	return sb.String()
}
