package product

import (
	"sort"
	"strings"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

// FASTag acquiring: onboarding of toll/parking plazas and their dependent
// entities. Table names follow the acquiring schema.
const (
	CodeFastagAcq = "FASTAG_ACQ"

	TablePlaza          = "netcacq_plaza_dtls"
	TableConcessionaire = "netcacq_plaza_concession_dtls"
	TableLane           = "netcacq_plaza_lane_dtls"
	TableFare           = "netcacq_plaza_fare_dtls"
	TableVehicleMapping = "netcacq_vhclclass_mapping_dtls"
	TableUserMapping    = "netcacq_user_role_mapping_dtls"
)

// section maps one field prefix in the batch file to its target table.
// Order matters: later tables reference rows written by earlier ones inside
// the same transaction (lanes need their plaza, fares need their lane setup).
type section struct {
	prefix string
	table  string
}

var fastagSections = []section{
	{prefix: "plaza", table: TablePlaza},
	{prefix: "conc", table: TableConcessionaire},
	{prefix: "lane", table: TableLane},
	{prefix: "fare", table: TableFare},
	{prefix: "vmap", table: TableVehicleMapping},
	{prefix: "umap", table: TableUserMapping},
}

// fastagSchemas declares every acquiring table: natural key, recognized
// fields, and the subset that may change without override. Natural keys and
// identity fields stay immutable; operational attributes may move.
var fastagSchemas = []core.TableSchema{
	{
		Name:       TablePlaza,
		NaturalKey: []string{"plaza_id"},
		Fields: []string{
			"plaza_id", "plaza_name", "plaza_type", "plaza_geocode",
			"address", "city", "state", "pincode",
			"merchant_id", "plaza_status", "agency_code", "modified_ts",
		},
		MutableFields: []string{"merchant_id", "plaza_status", "plaza_geocode", "modified_ts"},
	},
	{
		Name:       TableConcessionaire,
		NaturalKey: []string{"concessionaire_id"},
		Fields: []string{
			"concessionaire_id", "concessionaire_name", "plaza_id",
			"contact_name", "contact_phone", "contact_email",
			"settlement_account", "ifsc_code", "status", "modified_ts",
		},
		MutableFields: []string{
			"contact_name", "contact_phone", "contact_email",
			"settlement_account", "ifsc_code", "status", "modified_ts",
		},
	},
	{
		Name:       TableLane,
		NaturalKey: []string{"plaza_id", "lane_id"},
		Fields: []string{
			"plaza_id", "lane_id", "lane_direction", "lane_type",
			"lane_status", "reader_id", "controller_id", "modified_ts",
		},
		MutableFields: []string{"lane_status", "reader_id", "controller_id", "modified_ts"},
	},
	{
		Name:       TableFare,
		NaturalKey: []string{"fare_id"},
		Fields: []string{
			"fare_id", "plaza_id", "vehicle_class", "fare_amount",
			"return_fare_amount", "monthly_pass_amount",
			"effective_from", "effective_to", "modified_ts",
		},
		MutableFields: []string{
			"fare_amount", "return_fare_amount", "monthly_pass_amount",
			"effective_to", "modified_ts",
		},
	},
	{
		Name:       TableVehicleMapping,
		NaturalKey: []string{"plaza_id", "mvc_id"},
		Fields: []string{
			"plaza_id", "mvc_id", "npci_class", "avc_class",
			"permissible_weight", "description", "modified_ts",
		},
		MutableFields: []string{"avc_class", "permissible_weight", "description", "modified_ts"},
	},
	{
		Name:       TableUserMapping,
		NaturalKey: []string{"user_id"},
		Fields: []string{
			"user_id", "user_name", "role_code", "plaza_id",
			"user_status", "modified_ts",
		},
		MutableFields: []string{"role_code", "user_status", "modified_ts"},
	},
}

// FastagAcq is the adapter for the FASTag acquiring product.
type FastagAcq struct {
	registry *core.Registry
}

// NewFastagAcq builds the acquiring adapter with its immutable registry.
func NewFastagAcq() *FastagAcq {
	return &FastagAcq{registry: core.MustRegistry(fastagSchemas)}
}

func (f *FastagAcq) Code() string             { return CodeFastagAcq }
func (f *FastagAcq) Registry() *core.Registry { return f.registry }

// Decompose splits a flat record into ordered table operations. It rejects
// unrecognized field prefixes, unknown fields within a section, missing
// natural-key values, and plaza-type requirements that the record does not
// satisfy. All of these are shape failures: the row fails before any
// transaction is opened.
func (f *FastagAcq) Decompose(rec core.IncomingRecord) ([]core.TableOperation, error) {
	bySection, err := f.splitSections(rec)
	if err != nil {
		return nil, err
	}
	if len(bySection) == 0 {
		return nil, f.shapeErr("record carries no table data")
	}

	if err := f.checkPlazaRequirements(bySection); err != nil {
		return nil, err
	}

	var ops []core.TableOperation
	for _, sec := range fastagSections {
		fields, ok := bySection[sec.prefix]
		if !ok {
			continue
		}

		schema, err := f.registry.SchemaFor(sec.table)
		if err != nil {
			return nil, err
		}
		for name := range fields {
			if !schema.HasField(name) {
				return nil, f.shapeErr("unknown field %s.%s", sec.prefix, name)
			}
		}
		for _, k := range schema.NaturalKey {
			if strings.TrimSpace(fields[k]) == "" {
				return nil, f.shapeErr("%s.%s is required", sec.prefix, k)
			}
		}

		ops = append(ops, core.TableOperation{Table: sec.table, Fields: fields})
	}

	return ops, nil
}

// splitSections groups the record's prefixed fields by section, dropping
// empty values. Unprefixed or unknown-prefix fields are shape errors.
func (f *FastagAcq) splitSections(rec core.IncomingRecord) (map[string]map[string]string, error) {
	known := make(map[string]bool, len(fastagSections))
	for _, sec := range fastagSections {
		known[sec.prefix] = true
	}

	bySection := make(map[string]map[string]string)
	for _, name := range sortedFieldNames(rec.Fields) {
		value := strings.TrimSpace(rec.Fields[name])
		if value == "" {
			continue
		}

		prefix, field, ok := strings.Cut(name, ".")
		if !ok || field == "" {
			return nil, f.shapeErr("field %q has no table prefix", name)
		}
		if !known[prefix] {
			return nil, f.shapeErr("unrecognized field prefix %q", prefix)
		}

		if bySection[prefix] == nil {
			bySection[prefix] = make(map[string]string)
		}
		bySection[prefix][field] = value
	}
	return bySection, nil
}

// checkPlazaRequirements enforces the cross-table completeness rules tied to
// the plaza type: toll plazas onboard with concessionaire, lane, fare and
// vehicle-class data; parking plazas with concessionaire and lane data.
func (f *FastagAcq) checkPlazaRequirements(bySection map[string]map[string]string) error {
	plaza, ok := bySection["plaza"]
	if !ok {
		return nil
	}

	var required []string
	switch strings.ToLower(strings.TrimSpace(plaza["plaza_type"])) {
	case "toll":
		required = []string{"conc", "lane", "fare", "vmap"}
	case "parking":
		required = []string{"conc", "lane"}
	default:
		return nil
	}

	for _, prefix := range required {
		if len(bySection[prefix]) == 0 {
			return f.shapeErr("plaza type %q requires %s data",
				strings.TrimSpace(plaza["plaza_type"]), prefix)
		}
	}
	return nil
}

func (f *FastagAcq) shapeErr(format string, args ...any) error {
	return core.NewRecordShapeError(CodeFastagAcq, format, args...)
}

func sortedFieldNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
