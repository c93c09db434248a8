package domain

// Entity identifies one of the fixed record sets handled by the engine.
// The value doubles as the row-store sheet name and the record-store
// table name.
type Entity string

const (
	EntityDepartment         Entity = "departments"
	EntityUser               Entity = "users"
	EntityCategory           Entity = "categories"
	EntityStrategicPlan      Entity = "strategic_plans"
	EntityStrategicGoal      Entity = "strategic_goals"
	EntityStrategicIndicator Entity = "strategic_indicators"
	EntityProject            Entity = "projects"
	EntityProjectIndicator   Entity = "project_indicators"
	EntityReport             Entity = "reports"
	EntityAuditLog           Entity = "audit_logs"
)

// MigrationOrder lists every entity in dependency order. An entity's
// foreign keys only ever point at entities earlier in the list, so a
// migration walking the list always has the identifier maps its foreign
// keys need.
var MigrationOrder = []Entity{
	EntityDepartment,
	EntityUser,
	EntityCategory,
	EntityStrategicPlan,
	EntityStrategicGoal,
	EntityStrategicIndicator,
	EntityProject,
	EntityProjectIndicator,
	EntityReport,
	EntityAuditLog,
}

// Row-store header names shared between the merge and migrate passes.
const (
	FieldID            = "id"
	FieldName          = "name"
	FieldOrgType       = "organizationType"
	FieldAgency        = "agency"
	FieldDepartmentID  = "departmentId"
	FieldLineID        = "lineId"
	FieldEmail         = "email"
	FieldPlanID        = "strategicPlanId"
	FieldGoalID        = "strategicGoalId"
	FieldCategoryID    = "categoryId"
	FieldProjectID     = "projectId"
	FieldBudget        = "budget"
	FieldFiscalYear    = "fiscalYear"
	FieldDescription   = "description"
	FieldTarget        = "target"
	FieldUnit          = "unit"
	FieldReportedAt    = "reportedAt"
	FieldProgress      = "progress"
	FieldDetail        = "detail"
	FieldOccurredAt    = "occurredAt"
	FieldActor         = "actor"
	FieldAction        = "action"
	FieldActionTarget  = "actionTarget"
	FieldActionDetails = "actionDetails"
)

// MatchStyle says how a dependent row references a department: by the
// department's display name or by its row id. The source data uses both
// styles for the same logical relationship, so the rewriter branches per
// dependent type.
type MatchStyle string

const (
	MatchByName MatchStyle = "by_name"
	MatchByID   MatchStyle = "by_id"
)

// RefSpec describes one foreign reference from a dependent entity to a
// department. Adding a dependent type is a table entry, not a new code
// path.
type RefSpec struct {
	Entity Entity
	Field  string
	Style  MatchStyle
}

// DepartmentRefs lists every row set holding a reference to a department,
// in the form the reference rewriter consumes.
var DepartmentRefs = []RefSpec{
	{Entity: EntityProject, Field: FieldAgency, Style: MatchByName},
	{Entity: EntityUser, Field: FieldDepartmentID, Style: MatchByID},
}
