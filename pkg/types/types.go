// Package types defines the core data structures of the Aruna graph: typed
// nodes, directed edges, the relation registry, hooks, stream consumers and
// the event envelope every other package builds on.
package types

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit, time-sortable identifier. Node ids and event ids share
// this type; an event id doubles as a transaction id.
type ID = ulid.ULID

// NewID returns a fresh time-sortable id using the monotonic entropy source
// appropriate for ids minted on a single writer (the transaction controller).
func NewID(t time.Time, entropy *ulid.MonotonicEntropy) ID {
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// NodeIdx is the compact in-process index GS assigns a node at creation. It
// is never reused within a database instance and never exposed outside GS.
type NodeIdx uint32

// Variant tags a node with its concrete kind. Persisted at field id 1.
type Variant uint8

const (
	VariantProject Variant = iota
	VariantFolder
	VariantObject
	VariantUser
	VariantServiceAccount
	VariantGroup
	VariantRealm
)

func (v Variant) String() string {
	switch v {
	case VariantProject:
		return "project"
	case VariantFolder:
		return "folder"
	case VariantObject:
		return "object"
	case VariantUser:
		return "user"
	case VariantServiceAccount:
		return "service_account"
	case VariantGroup:
		return "group"
	case VariantRealm:
		return "realm"
	default:
		return "unknown"
	}
}

// Field ids. The set is fixed at the design level; consult
// original_source/aruna-server/src/models/models.rs for the field numbering
// this registry is grounded on.
const (
	FieldID            uint16 = 0
	FieldVariant       uint16 = 1
	FieldName          uint16 = 2
	FieldDescription   uint16 = 3
	FieldLabels        uint16 = 4
	FieldIdentifiers   uint16 = 5
	FieldContentLen    uint16 = 6
	FieldCount         uint16 = 7
	FieldVisibility    uint16 = 8
	FieldCreatedAt     uint16 = 9
	FieldLastModified  uint16 = 10
	FieldAuthors       uint16 = 11
	FieldLocked        uint16 = 12
	FieldStatus        uint16 = 13
	FieldHashes        uint16 = 14
	FieldLicense       uint16 = 15
	FieldDataLicense   uint16 = 16
	FieldDataClass     uint16 = 17
	FieldFirstName     uint16 = 18
	FieldLastName      uint16 = 19
	FieldEmail         uint16 = 20
	FieldGlobalAdmin   uint16 = 21
	FieldTagOrTitle    uint16 = 22 // Realm.tag and Resource.title share this id; disambiguated by Variant.
	FieldLastEventID   uint16 = 23
	FieldIsAdminRealm  uint16 = 24
)

// ObjectStatus is the lifecycle state of a Project/Folder/Object resource.
type ObjectStatus string

const (
	ObjectStatusInitializing ObjectStatus = "initializing"
	ObjectStatusAvailable    ObjectStatus = "available"
	ObjectStatusDeleted      ObjectStatus = "deleted"
	ObjectStatusError        ObjectStatus = "error"
)

// Visibility controls whether a resource is discoverable without permission.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// KeyValue is a label attached to a node. Variant distinguishes ordinary
// user labels from reserved system variants such as HookStatus, so that a
// hook's own declaration label never collides with its status entry.
type KeyValue struct {
	Key     string
	Value   string
	Variant KeyValueVariant
}

// KeyValueVariant discriminates the purpose of a KeyValue entry.
type KeyValueVariant string

const (
	KeyValueVariantLabel          KeyValueVariant = "label"
	KeyValueVariantIdentifier     KeyValueVariant = "identifier"
	KeyValueVariantStaticLabel    KeyValueVariant = "static_label"
	KeyValueVariantHookStatus     KeyValueVariant = "hook_status"
	KeyValueVariantHookDeclared   KeyValueVariant = "hook_declared"
)

// Node is the single on-disk representation for every variant. Only the
// fields relevant to a node's Variant are populated; callers dispatch on
// Variant rather than relying on structural typing.
type Node struct {
	ID           ID
	Idx          NodeIdx
	Variant      Variant
	Name         string
	Description  string
	Labels       []KeyValue
	CreatedAt    time.Time
	LastModified time.Time
	LastEventID  ID

	// Resource (Project/Folder/Object) fields.
	Title        string
	ContentLen   int64
	Hashes       map[string]string
	Visibility   Visibility
	Status       ObjectStatus
	License      string
	DataLicense  string
	DataClass    string
	Authors      []string
	Locked       bool

	// User fields.
	FirstName   string
	LastName    string
	Email       string
	GlobalAdmin bool

	// Realm fields.
	Tag         string
	IsAdminRealm bool
}

// RelationType is a static, boot-loaded registry entry; never mutated online.
type RelationType struct {
	Code     uint32
	Forward  string
	Backward string
	Internal bool
}

// Relation codes. PermissionNone..PermissionAdmin form a total order used by
// the permission walk; Less-specific levels must keep lower numeric values.
const (
	RelPermissionNone uint32 = iota
	RelPermissionRead
	RelPermissionAppend
	RelPermissionWrite
	RelPermissionAdmin
	RelBelongsTo
	RelDeleted
	RelGroupPartOfRealm
	RelGroupAdministratesRealm
	RelOwnedBy
)

// PermissionLevel returns the total order index of a permission relation, or
// -1 if rel is not a permission-family relation.
func PermissionLevel(rel uint32) int {
	switch rel {
	case RelPermissionNone:
		return 0
	case RelPermissionRead:
		return 1
	case RelPermissionAppend:
		return 2
	case RelPermissionWrite:
		return 3
	case RelPermissionAdmin:
		return 4
	default:
		return -1
	}
}

// DefaultRelationTypes is the registry loaded at boot.
func DefaultRelationTypes() map[uint32]RelationType {
	return map[uint32]RelationType{
		RelPermissionNone:          {RelPermissionNone, "permission_none", "permission_none_of", false},
		RelPermissionRead:          {RelPermissionRead, "permission_read", "permission_read_of", false},
		RelPermissionAppend:        {RelPermissionAppend, "permission_append", "permission_append_of", false},
		RelPermissionWrite:         {RelPermissionWrite, "permission_write", "permission_write_of", false},
		RelPermissionAdmin:         {RelPermissionAdmin, "permission_admin", "permission_admin_of", false},
		RelBelongsTo:               {RelBelongsTo, "belongs_to", "has_part", false},
		RelDeleted:                 {RelDeleted, "deleted", "deleted_of", true},
		RelGroupPartOfRealm:        {RelGroupPartOfRealm, "group_part_of_realm", "realm_has_group", false},
		RelGroupAdministratesRealm: {RelGroupAdministratesRealm, "group_administrates_realm", "realm_administrated_by", false},
		RelOwnedBy:                 {RelOwnedBy, "owned_by", "owns", true},
	}
}

// Edge is the persisted triple. Direction is Out from Source to Target.
type Edge struct {
	Source NodeIdx
	Target NodeIdx
	Type   uint32
}

// Trigger enumerates the events a hook can fire on.
type Trigger string

const (
	TriggerResourceCreated   Trigger = "resource_created"
	TriggerLabelAdded        Trigger = "label_added"
	TriggerHookAdded         Trigger = "hook_added"
	TriggerStaticLabelAdded  Trigger = "static_label_added"
	TriggerHookStatusChanged Trigger = "hook_status_changed"
	TriggerObjectFinished    Trigger = "object_finished"
)

// FilterPredicate is one disjunct of a hook's filter expression.
type FilterPredicate struct {
	NameMatches     string // regex, empty if unused
	KeyMatches      string // regex over KeyValue.Key
	ValueMatches    string // regex over KeyValue.Value
	KeyValueVariant KeyValueVariant
	UseKeyValue     bool
}

// HookActionKind distinguishes internal mutations from external callbacks.
type HookActionKind string

const (
	HookActionInternalAddLabel      HookActionKind = "internal_add_label"
	HookActionInternalAddHook       HookActionKind = "internal_add_hook"
	HookActionInternalCreateRelation HookActionKind = "internal_create_relation"
	HookActionExternalHTTP          HookActionKind = "external_http"
)

// HookTemplate selects the external HTTP payload shape.
type HookTemplate string

const (
	HookTemplateBasic  HookTemplate = "basic"
	HookTemplateCustom HookTemplate = "custom"
)

// HookAction describes what a hook does when it fires.
type HookAction struct {
	Kind HookActionKind

	// Internal
	LabelKey      string
	LabelValue    string
	RelationType  uint32
	RelationTarget ID

	// External
	URL          string
	Method       string // PUT or POST
	AuthBearer   string
	Template     HookTemplate
	CustomBody   string
}

// Hook is a user-declared side effect, CRUD'd via write transactions.
type Hook struct {
	ID           ID
	Owner        ID
	ProjectScope ID
	Trigger      Trigger
	Filter       []FilterPredicate
	Action       HookAction
	Timeout      time.Duration
}

// HookState is the lifecycle of one (hook, object) invocation.
type HookState string

const (
	HookStatePending  HookState = "pending"
	HookStateRunning  HookState = "running"
	HookStateFinished HookState = "finished"
	HookStateError    HookState = "error"
)

// HookStatus is attached to the affected node as a KeyValue of variant
// KeyValueVariantHookStatus, keyed by hook id.
type HookStatus struct {
	HookID  ID
	State   HookState
	Trigger Trigger
	Message string
}

// DeliverPolicyKind selects where a StreamConsumer starts reading.
type DeliverPolicyKind string

const (
	DeliverAll          DeliverPolicyKind = "all"
	DeliverFromSequence DeliverPolicyKind = "from_sequence"
	DeliverFromTimestamp DeliverPolicyKind = "from_timestamp"
)

// DeliverPolicy configures a StreamConsumer's starting cursor.
type DeliverPolicy struct {
	Kind      DeliverPolicyKind
	Sequence  uint64
	Timestamp time.Time
}

// StreamConsumer is a durable subscription with its own cursor.
type StreamConsumer struct {
	ID        ID
	Name      string
	Principal *ID
	Subject   string
	Policy    DeliverPolicy
	Cursor    uint64
	Timeout   time.Duration
}

// EventVariant tags what happened to an entity in a committed transaction.
type EventVariant string

const (
	EventCreated   EventVariant = "created"
	EventUpdated   EventVariant = "updated"
	EventDeleted   EventVariant = "deleted"
	EventAvailable EventVariant = "available"
)

// EventMessage is what EB publishes for each affected entity of a commit.
type EventMessage struct {
	EventID     ID
	EntityRef   ID
	Variant     EventVariant
	Hierarchies []ID
}

// PublicKey is a cached issuer signing key used by token verification.
type PublicKey struct {
	Serial uint32
	Issuer string
	KeyID  string
}
