package search

// Field is a mission attribute the engine is allowed to reference. The set is
// closed: storage adapters map every Field to a native path or column and the
// engine refuses to start when one of them is missing.
type Field string

// Kind drives how rule values are parsed and which operators apply
type Kind int

// Field kinds
const (
	KindKeyword Kind = iota
	KindText
	KindArray
	KindNumber
	KindDate
)

// Mission fields
const (
	FieldID                        Field = "id"
	FieldPublisherID               Field = "publisherId"
	FieldPublisherName             Field = "publisherName"
	FieldClientID                  Field = "clientId"
	FieldTitle                     Field = "title"
	FieldDescription               Field = "description"
	FieldDomain                    Field = "domain"
	FieldActivity                  Field = "activity"
	FieldStatusCode                Field = "statusCode"
	FieldOrganizationID            Field = "organizationId"
	FieldOrganizationName          Field = "organizationName"
	FieldCity                      Field = "city"
	FieldPostalCode                Field = "postalCode"
	FieldDepartmentCode            Field = "departmentCode"
	FieldDepartmentName            Field = "departmentName"
	FieldRegion                    Field = "region"
	FieldCountry                   Field = "country"
	FieldRemote                    Field = "remote"
	FieldSchedule                  Field = "schedule"
	FieldAudience                  Field = "audience"
	FieldTasks                     Field = "tasks"
	FieldTags                      Field = "tags"
	FieldOpenToMinors              Field = "openToMinors"
	FieldReducedMobilityAccessible Field = "reducedMobilityAccessible"
	FieldCloseToTransport          Field = "closeToTransport"
	FieldDuration                  Field = "duration"
	FieldPlaces                    Field = "places"
	FieldStartAt                   Field = "startAt"
	FieldEndAt                     Field = "endAt"
	FieldCreatedAt                 Field = "createdAt"
	FieldDeletedAt                 Field = "deletedAt"
)

var fieldKinds = map[Field]Kind{
	FieldID:                        KindKeyword,
	FieldPublisherID:               KindKeyword,
	FieldPublisherName:             KindKeyword,
	FieldClientID:                  KindKeyword,
	FieldTitle:                     KindText,
	FieldDescription:               KindText,
	FieldDomain:                    KindKeyword,
	FieldActivity:                  KindKeyword,
	FieldStatusCode:                KindKeyword,
	FieldOrganizationID:            KindKeyword,
	FieldOrganizationName:          KindText,
	FieldCity:                      KindText,
	FieldPostalCode:                KindKeyword,
	FieldDepartmentCode:            KindKeyword,
	FieldDepartmentName:            KindKeyword,
	FieldRegion:                    KindKeyword,
	FieldCountry:                   KindKeyword,
	FieldRemote:                    KindKeyword,
	FieldSchedule:                  KindKeyword,
	FieldAudience:                  KindArray,
	FieldTasks:                     KindArray,
	FieldTags:                      KindArray,
	FieldOpenToMinors:              KindKeyword,
	FieldReducedMobilityAccessible: KindKeyword,
	FieldCloseToTransport:          KindKeyword,
	FieldDuration:                  KindNumber,
	FieldPlaces:                    KindNumber,
	FieldStartAt:                   KindDate,
	FieldEndAt:                     KindDate,
	FieldCreatedAt:                 KindDate,
	FieldDeletedAt:                 KindDate,
}

// ruleFields are the names widget owners can write rules against. Internal
// bookkeeping fields (status, deletion, ids) are deliberately absent.
var ruleFields = map[string]Field{
	"publisherName":             FieldPublisherName,
	"title":                     FieldTitle,
	"description":               FieldDescription,
	"domain":                    FieldDomain,
	"activity":                  FieldActivity,
	"organizationName":          FieldOrganizationName,
	"city":                      FieldCity,
	"postalCode":                FieldPostalCode,
	"departmentCode":            FieldDepartmentCode,
	"departmentName":            FieldDepartmentName,
	"region":                    FieldRegion,
	"country":                   FieldCountry,
	"remote":                    FieldRemote,
	"schedule":                  FieldSchedule,
	"audience":                  FieldAudience,
	"tasks":                     FieldTasks,
	"tags":                      FieldTags,
	"openToMinors":              FieldOpenToMinors,
	"reducedMobilityAccessible": FieldReducedMobilityAccessible,
	"closeToTransport":          FieldCloseToTransport,
	"duration":                  FieldDuration,
	"places":                    FieldPlaces,
	"startAt":                   FieldStartAt,
	"endAt":                     FieldEndAt,
	"createdAt":                 FieldCreatedAt,
}

// Fields returns every registered field
func Fields() []Field {
	out := make([]Field, 0, len(fieldKinds))
	for f := range fieldKinds {
		out = append(out, f)
	}
	return out
}

// KindOf returns the kind of a registered field
func KindOf(f Field) (Kind, bool) {
	k, ok := fieldKinds[f]
	return k, ok
}

// LookupRuleField resolves the field name stored on a widget rule
func LookupRuleField(name string) (Field, bool) {
	f, ok := ruleFields[name]
	return f, ok
}
