/*
Package types defines the core data structures of the Aruna property graph.

This package contains the fundamental types that represent Aruna's domain
model: nodes (Project, Folder, Object, User, ServiceAccount, Group, Realm),
typed edges, the relation-type registry, hooks and their status, stream
consumers, and the event envelope. Every other package builds on these types
rather than defining its own.

# Polymorphic nodes

A node is a tagged variant over {Resource(Project|Folder|Object), User,
ServiceAccount, Group, Realm}. The tag is persisted at field id 1 (Variant)
and dispatch is always on that tag; callers must never rely on structural
typing to distinguish one variant from another.

# Field ids

Field ids are fixed at the design level so the on-disk record format (see
pkg/recordstore) is stable across the life of a database: id 0 is the node's
own id, 1 is Variant, 2 is Name, 3 is Description, and so on through the
FieldXxx constants in this file. Field id 22 is shared between a resource's
Title and a realm's Tag; the two are disambiguated by Variant, never by
position.

# Relation registry

RelationType entries are loaded once at boot from DefaultRelationTypes and
never mutated online. The five permission relations
(permission_none < permission_read < permission_append < permission_write <
permission_admin) form a total order consumed by the permission walk in
pkg/graph; PermissionLevel maps a relation code to its position in that
order, or -1 for non-permission relations.

# Hooks

A Hook fires an Action when a committed event on a node within its
ProjectScope matches its Trigger and Filter. HookStatus entries use
KeyValueVariantHookStatus, a variant distinct from a hook's own declared
label, so that a hook's status and its label never collide in the same
key/value list on a node.
*/
package types
