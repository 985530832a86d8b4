// Package okr defines the locally stored OKR entity records replicated to LinkHub.
package okr

import "time"

// Kind identifies an OKR entity type.
type Kind string

const (
	KindCompany           Kind = "company"
	KindTeam              Kind = "team"
	KindUser              Kind = "user"
	KindIndicator         Kind = "indicator"
	KindIndicatorValue    Kind = "indicatorValue"
	KindIndicatorForecast Kind = "indicatorForecast"
	KindObjective         Kind = "objective"
	KindKeyResult         Kind = "keyResult"
	KindRisk              Kind = "risk"
	KindInitiative        Kind = "initiative"
	KindMilestone         Kind = "milestone"
)

// SyncStatus tracks an entity's replication state toward LinkHub.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Entity is a locally owned record of any OKR kind. Type-specific fields live
// in Fields; parent references are externalId strings inside Fields, never
// internal row ids, because the local store and LinkHub are separate storage
// domains.
type Entity struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	ExternalID string         `json:"externalId"`
	Fields     map[string]any `json:"fields"`
	SyncStatus SyncStatus     `json:"syncStatus"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
	DeletedAt  *time.Time     `json:"deletedAt,omitempty"`
}

// Ref describes a parent reference carried in an entity's fields.
type Ref struct {
	Field    string // field name holding the parent externalId
	Kind     Kind   // expected parent kind
	Required bool
}

// kindSpec describes the per-kind metadata the engine consults: the batch
// payload collection name and the parent references to validate at write time.
type kindSpec struct {
	collection string
	refs       []Ref
}

var kinds = map[Kind]kindSpec{
	KindCompany:   {collection: "companies"},
	KindTeam:      {collection: "teams", refs: []Ref{{Field: "companyExternalId", Kind: KindCompany}}},
	KindUser:      {collection: "users", refs: []Ref{{Field: "teamExternalId", Kind: KindTeam}}},
	KindIndicator: {collection: "indicators", refs: []Ref{{Field: "teamExternalId", Kind: KindTeam}}},
	KindIndicatorValue: {collection: "indicatorValues", refs: []Ref{
		{Field: "indicatorExternalId", Kind: KindIndicator, Required: true},
	}},
	KindIndicatorForecast: {collection: "indicatorForecasts", refs: []Ref{
		{Field: "indicatorExternalId", Kind: KindIndicator, Required: true},
	}},
	KindObjective: {collection: "objectives", refs: []Ref{
		{Field: "teamExternalId", Kind: KindTeam},
		{Field: "ownerExternalId", Kind: KindUser},
	}},
	KindKeyResult: {collection: "keyResults", refs: []Ref{
		{Field: "objectiveExternalId", Kind: KindObjective, Required: true},
		{Field: "indicatorExternalId", Kind: KindIndicator},
	}},
	KindRisk: {collection: "risks", refs: []Ref{
		{Field: "objectiveExternalId", Kind: KindObjective, Required: true},
	}},
	KindInitiative: {collection: "initiatives", refs: []Ref{
		{Field: "keyResultExternalId", Kind: KindKeyResult, Required: true},
	}},
	KindMilestone: {collection: "milestones", refs: []Ref{
		{Field: "initiativeExternalId", Kind: KindInitiative, Required: true},
	}},
}

// ValidKind reports whether k names a known entity kind.
func ValidKind(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

// Collection returns the batch payload collection name for k ("" if unknown).
func Collection(k Kind) string {
	return kinds[k].collection
}

// Refs returns the parent references declared for k.
func Refs(k Kind) []Ref {
	return kinds[k].refs
}

// Kinds returns all known kinds in stable (declaration) order.
func Kinds() []Kind {
	return []Kind{
		KindCompany, KindTeam, KindUser, KindIndicator, KindIndicatorValue,
		KindIndicatorForecast, KindObjective, KindKeyResult, KindRisk,
		KindInitiative, KindMilestone,
	}
}
