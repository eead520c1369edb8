package plan

// Canonical column names produced by the exposures stage.
const (
	ColRandUnitID          = "rand_unit_id"
	ColVariant             = "variant"
	ColFirstAssignmentDate = "first_assignment_date"
	ColEntryPointDate      = "entry_point_date"
)

// CanonicalColumns lists the canonical schema in projection order.
var CanonicalColumns = []string{
	ColRandUnitID,
	ColVariant,
	ColFirstAssignmentDate,
	ColEntryPointDate,
}

// Stage is one entry of the composed WITH clause.
//
// This is a sealed interface - only types in this package implement it.
type Stage interface {
	stageNode() // Marker method - seals interface to this package
}

// Block is a verbatim CTE list lifted from a user fragment.
//
// Source identifies where it came from ("assignments", "entry_point",
// "fact[1]") for error messages. Exposes is the table the fragment's
// terminal select read from; it may be empty. Several blocks may expose
// the same table, but none may expose a generated stage's name.
type Block struct {
	Source  string
	Body    string
	Exposes string
}

func (Block) stageNode() {}

// Exposures joins assignments to entry points and renames columns to the
// canonical schema.
//
// Semantics:
//
//	<Name> as (
//	    select a.<AssignmentsID> as rand_unit_id, ...
//	    from <AssignmentsTable> a
//	    inner join <EntryPointTable> e
//	    on a.<AssignmentsID> = e.<EntryPointID>
//	)
//
// The inner join drops units that never reached the entry point.
type Exposures struct {
	Name string

	AssignmentsTable string
	AssignmentsID    string
	VariantColumn    string
	AssignmentsDate  string

	EntryPointTable string
	EntryPointID    string
	EntryPointDate  string
}

func (Exposures) stageNode() {}

// FactMerge left-joins one fact table onto exposures and aggregates it to
// one row per unit.
//
// Semantics:
//
//	<Name> as (
//	    select e.rand_unit_id, ..., coalesce(sum(<col>), 0) as <col>
//	    from <Exposures> e
//	    left join <FactTable> f
//	    on e.rand_unit_id = f.<UnitID>
//	       and (f.<DateColumn> >= e.entry_point_date or f.<DateColumn> is null)
//	    group by 1, 2, 3, 4
//	)
//
// Every exposed unit appears exactly once; units without eligible fact rows
// get zero for every column. There is no upper date bound.
type FactMerge struct {
	Name       string
	Exposures  string
	FactTable  string
	UnitID     string
	DateColumn string
	Columns    []string
}

func (FactMerge) stageNode() {}

// FinalMerge inner-joins exposures to every fact merge on the canonical
// schema and projects the canonical columns followed by every fact column.
//
// Facts are joined and projected in slice order; each fact merge is joined
// by its own name.
type FinalMerge struct {
	Name      string
	Exposures string
	Facts     []FactMerge
}

func (FinalMerge) stageNode() {}

// Plan is an ordered stage list plus the stage the statement finally
// selects from.
type Plan struct {
	Stages   []Stage
	Terminal string
}

// StageName returns the CTE name a stage defines, or "" for a Block.
func StageName(s Stage) string {
	switch st := s.(type) {
	case Exposures:
		return st.Name
	case *Exposures:
		return st.Name
	case FactMerge:
		return st.Name
	case *FactMerge:
		return st.Name
	case FinalMerge:
		return st.Name
	case *FinalMerge:
		return st.Name
	default:
		return ""
	}
}
