package externalif

import "github.com/aruna-project/aruna-server/pkg/types"

// Presigner produces the S3-style access/secret pair and pubkey serial a
// Basic-template hook payload carries, per spec.md §6's Hook HTTP call
// shape. No implementation ships with this module; pkg/hooks treats a nil
// Presigner as "omit these fields".
type Presigner interface {
	Presign(object types.ID, download bool) (pubkeySerial uint32, secret, accessKey, secretKey string, err error)
}

// Projector receives committed node mutations for external search
// indexing. No implementation ships with this module.
type Projector interface {
	Project(node *types.Node) error
}
