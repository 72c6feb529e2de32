package requestlayer

import (
	"fmt"

	"github.com/aruna-project/aruna-server/pkg/arerr"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/types"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

func init() {
	txcontroller.Register(kindCreateRealm, func() txcontroller.WriteRequest { return &CreateRealmRequest{} })
	txcontroller.Register(kindAddGroup, func() txcontroller.WriteRequest { return &AddGroupRequest{} })
	txcontroller.Register(kindCreateProject, func() txcontroller.WriteRequest { return &CreateProjectRequest{} })
	txcontroller.Register(kindCreateObject, func() txcontroller.WriteRequest { return &CreateObjectRequest{} })
	txcontroller.Register(kindFinishObject, func() txcontroller.WriteRequest { return &FinishObjectRequest{} })
	txcontroller.Register(kindGrantPermission, func() txcontroller.WriteRequest { return &GrantPermissionRequest{} })
	txcontroller.Register(kindDeleteNode, func() txcontroller.WriteRequest { return &DeleteNodeRequest{} })
}

const (
	kindCreateRealm     = "requestlayer.create_realm"
	kindAddGroup        = "requestlayer.add_group"
	kindCreateProject   = "requestlayer.create_project"
	kindCreateObject    = "requestlayer.create_object"
	kindFinishObject    = "requestlayer.finish_object"
	kindGrantPermission = "requestlayer.grant_permission"
	kindDeleteNode      = "requestlayer.delete_node"
)

// deriveID produces a second deterministic id from a transaction's eventID,
// for write requests (like CreateRealmRequest) that mint more than one node
// in a single commit. Replay must re-derive the identical id, so this avoids
// any non-deterministic entropy source; salt only needs to differ between
// the ids minted within one request.
func deriveID(eventID types.ID, salt byte) types.ID {
	id := eventID
	id[len(id)-1] ^= salt
	return id
}

func uniqueRealmTag(r *recordstore.ReadTxn, ui *universe.Index, tag string) error {
	matches, err := ui.Filtered(r, universe.And(universe.FilterVariant(types.VariantRealm), universe.Eq(universe.FieldTag, tag)))
	if err != nil {
		return fmt.Errorf("requestlayer: check realm tag uniqueness: %w", err)
	}
	if len(matches) > 0 {
		return arerr.NewConflict("tag", "requestlayer: realm tag %q already in use", tag)
	}
	return nil
}

// CreateRealmRequest implements spec.md §8 scenario S1: a new realm plus its
// auto-created admin group, with the owner granted admin on that group.
type CreateRealmRequest struct {
	Owner types.ID `json:"owner"`
	Tag   string   `json:"tag"`
	Name  string   `json:"name"`
}

func (r *CreateRealmRequest) Kind() string { return kindCreateRealm }

func (r *CreateRealmRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	if err := uniqueRealmTag(w.GetTxn(), ui, r.Tag); err != nil {
		return nil, nil, "", err
	}
	ownerIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Owner)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: owner %s does not exist", r.Owner.String())
	}

	realm := &types.Node{ID: eventID, Variant: types.VariantRealm, Name: r.Name, Tag: r.Tag}
	realmIdx, err := gs.CreateNode(w, realm)
	if err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, realm); err != nil {
		return nil, nil, "", err
	}

	group := &types.Node{ID: deriveID(eventID, 1), Variant: types.VariantGroup, Name: r.Name + "-admin"}
	groupIdx, err := gs.CreateNode(w, group)
	if err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, group); err != nil {
		return nil, nil, "", err
	}

	if err := gs.CreateRelation(w, groupIdx, realmIdx, types.RelGroupAdministratesRealm); err != nil {
		return nil, nil, "", err
	}
	if err := gs.CreateRelation(w, ownerIdx, groupIdx, types.RelPermissionAdmin); err != nil {
		return nil, nil, "", err
	}

	return []byte(realm.ID.String()), []types.NodeIdx{realmIdx, groupIdx, ownerIdx}, types.EventCreated, nil
}

// AddGroupRequest implements spec.md §8 scenario S2: attach an existing
// group to a realm via group_part_of_realm (distinct from the
// group_administrates_realm edge CreateRealmRequest creates).
type AddGroupRequest struct {
	Realm types.ID `json:"realm"`
	Group types.ID `json:"group"`
}

func (r *AddGroupRequest) Kind() string { return kindAddGroup }

func (r *AddGroupRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	realmIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Realm)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: realm %s does not exist", r.Realm.String())
	}
	groupIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Group)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: group %s does not exist", r.Group.String())
	}
	if err := gs.CreateRelation(w, groupIdx, realmIdx, types.RelGroupPartOfRealm); err != nil {
		return nil, nil, "", err
	}
	return nil, []types.NodeIdx{groupIdx, realmIdx}, types.EventUpdated, nil
}

// CreateProjectRequest creates a project under a realm.
type CreateProjectRequest struct {
	Realm       types.ID         `json:"realm"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Visibility  types.Visibility `json:"visibility"`
}

func (r *CreateProjectRequest) Kind() string { return kindCreateProject }

func (r *CreateProjectRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	realmIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Realm)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: realm %s does not exist", r.Realm.String())
	}

	visibility := r.Visibility
	if visibility == "" {
		visibility = types.VisibilityPrivate
	}
	project := &types.Node{
		ID: eventID, Variant: types.VariantProject, Name: r.Name, Description: r.Description,
		Visibility: visibility, Status: types.ObjectStatusAvailable,
	}
	idx, err := gs.CreateNode(w, project)
	if err != nil {
		return nil, nil, "", err
	}
	if err := gs.CreateRelation(w, idx, realmIdx, types.RelBelongsTo); err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, project); err != nil {
		return nil, nil, "", err
	}
	return []byte(project.ID.String()), []types.NodeIdx{idx, realmIdx}, types.EventCreated, nil
}

// CreateObjectRequest creates a Folder or Object under a container
// (project/folder), initially in Initializing status for objects (per
// spec.md §8 scenario S4) or Available immediately for folders, which have
// no upload step.
type CreateObjectRequest struct {
	Parent types.ID     `json:"parent"`
	Name   string       `json:"name"`
	Title  string       `json:"title"`
	Folder bool         `json:"folder"`
}

func (r *CreateObjectRequest) Kind() string { return kindCreateObject }

func (r *CreateObjectRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	parentIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Parent)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: parent %s does not exist", r.Parent.String())
	}

	variant := types.VariantObject
	status := types.ObjectStatusInitializing
	if r.Folder {
		variant = types.VariantFolder
		status = types.ObjectStatusAvailable
	}

	node := &types.Node{ID: eventID, Variant: variant, Name: r.Name, Title: r.Title, Status: status, Visibility: types.VisibilityPrivate}
	idx, err := gs.CreateNode(w, node)
	if err != nil {
		return nil, nil, "", err
	}
	if err := gs.CreateRelation(w, idx, parentIdx, types.RelBelongsTo); err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, node); err != nil {
		return nil, nil, "", err
	}

	variantOut := types.EventCreated
	if r.Folder {
		variantOut = types.EventAvailable
	}
	return []byte(node.ID.String()), []types.NodeIdx{idx, parentIdx}, variantOut, nil
}

// FinishObjectRequest transitions an Object from Initializing to Available
// once its content hash is known, per spec.md §8 scenario S4.
type FinishObjectRequest struct {
	Object types.ID          `json:"object"`
	Hashes map[string]string `json:"hashes"`
}

func (r *FinishObjectRequest) Kind() string { return kindFinishObject }

func (r *FinishObjectRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	idx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Object)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: object %s does not exist", r.Object.String())
	}
	node, err := gs.GetNode(w.GetTxn(), idx)
	if err != nil {
		return nil, nil, "", err
	}
	if node.Variant != types.VariantObject {
		return nil, nil, "", arerr.NewInvalid("requestlayer: %s is not an object", r.Object.String())
	}
	node.Status = types.ObjectStatusAvailable
	node.Hashes = r.Hashes
	if err := gs.PutNode(w, node); err != nil {
		return nil, nil, "", err
	}
	if err := ui.Project(w, node); err != nil {
		return nil, nil, "", err
	}
	return nil, []types.NodeIdx{idx}, types.EventAvailable, nil
}

// GrantPermissionRequest creates a permission edge from a principal (user,
// service account, or group) to any resource or realm.
type GrantPermissionRequest struct {
	Principal types.ID `json:"principal"`
	Source    types.ID `json:"source"`
	Level     uint32   `json:"level"`
}

func (r *GrantPermissionRequest) Kind() string { return kindGrantPermission }

func (r *GrantPermissionRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	if types.PermissionLevel(r.Level) < 0 {
		return nil, nil, "", arerr.NewInvalid("requestlayer: %d is not a permission-family relation", r.Level)
	}
	principalIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Principal)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: principal %s does not exist", r.Principal.String())
	}
	sourceIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Source)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: source %s does not exist", r.Source.String())
	}
	if err := gs.CreateRelation(w, principalIdx, sourceIdx, r.Level); err != nil {
		return nil, nil, "", err
	}
	return nil, []types.NodeIdx{principalIdx, sourceIdx}, types.EventUpdated, nil
}

// DeleteNodeRequest implements spec.md §4.8's delete semantics for
// Project/Folder/Object resources: status transition, belongs_to edges
// rewritten to the deleted sentinel, and recursion into subresources. Realm,
// User, Group, and ServiceAccount nodes have no ObjectStatus field and are
// out of this request's scope.
type DeleteNodeRequest struct {
	Target        types.ID `json:"target"`
	WithRevisions bool     `json:"with_revisions"`
}

func (r *DeleteNodeRequest) Kind() string { return kindDeleteNode }

func (r *DeleteNodeRequest) Execute(eventID types.ID, w *recordstore.WriteTxn, gs *graph.Store, ui *universe.Index) ([]byte, []types.NodeIdx, types.EventVariant, error) {
	rootIdx, ok := gs.GetIdxFromULID(w.GetTxn(), r.Target)
	if !ok {
		return nil, nil, "", arerr.NewNotFound("requestlayer: target %s does not exist", r.Target.String())
	}
	root, err := gs.GetNode(w.GetTxn(), rootIdx)
	if err != nil {
		return nil, nil, "", err
	}
	if root.Variant != types.VariantProject && root.Variant != types.VariantFolder && root.Variant != types.VariantObject {
		return nil, nil, "", arerr.NewInvalid("requestlayer: delete is only defined for project/folder/object, got %s", root.Variant.String())
	}

	descendants, err := gs.SubresourceEnumeration(w.GetTxn(), rootIdx)
	if err != nil {
		return nil, nil, "", err
	}
	targets := append([]types.NodeIdx{rootIdx}, descendants...)

	var affected []types.NodeIdx
	for _, idx := range targets {
		node, err := gs.GetNode(w.GetTxn(), idx)
		if err != nil {
			return nil, nil, "", err
		}
		if node.Status == types.ObjectStatusDeleted {
			continue
		}

		parents, err := gs.GetRelations(w.GetTxn(), idx, []uint32{types.RelBelongsTo}, graph.DirectionOut)
		if err != nil {
			return nil, nil, "", err
		}
		if len(parents) > 1 && !r.WithRevisions {
			return nil, nil, "", arerr.NewInvalid("requestlayer: %s has multiple parents, set with_revisions=true to delete", node.ID.String())
		}

		node.Status = types.ObjectStatusDeleted
		if err := gs.PutNode(w, node); err != nil {
			return nil, nil, "", err
		}
		if err := ui.Project(w, node); err != nil {
			return nil, nil, "", err
		}
		for _, p := range parents {
			if err := gs.DeleteRelation(w, idx, p.Target, types.RelBelongsTo); err != nil {
				return nil, nil, "", err
			}
			if err := gs.CreateRelation(w, idx, p.Target, types.RelDeleted); err != nil {
				return nil, nil, "", err
			}
		}
		affected = append(affected, idx)
	}

	return nil, affected, types.EventDeleted, nil
}
