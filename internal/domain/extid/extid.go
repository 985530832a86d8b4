// Package extid implements the external identifier scheme shared with LinkHub.
//
// An external identifier has the form {sourceApp}:{entityType}:{uuid}. It is
// the only key that crosses the boundary between the local store and the
// remote system; internal row identity never leaves the database.
package extid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okrtools/goalpost/internal/domain"
)

// Separator joins the three identifier segments.
const Separator = ":"

// scopedNamespace is the fixed namespace UUID for scoped-deterministic ids.
// Changing it would change every derived identifier, so it is frozen.
var scopedNamespace = uuid.MustParse("8f0b4b64-5bf1-4e3a-9d67-2c1a4875d3be")

// Generate builds a random-mode identifier for entities without a natural
// dedup key.
func Generate(sourceApp, entityType string) (string, error) {
	if err := checkSegment("sourceApp", sourceApp); err != nil {
		return "", err
	}
	if err := checkSegment("entityType", entityType); err != nil {
		return "", err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return sourceApp + Separator + entityType + Separator + id.String(), nil
}

// GenerateScoped builds a scoped-deterministic identifier. The same four
// inputs always yield the same identifier, which is what makes retried or
// replayed creates idempotent without a remote round trip. The description is
// not normalized: a whitespace difference is a different identifier.
func GenerateScoped(sourceApp, entityType, parentExternalID, description string) (string, error) {
	if err := checkSegment("sourceApp", sourceApp); err != nil {
		return "", err
	}
	if err := checkSegment("entityType", entityType); err != nil {
		return "", err
	}
	if err := Assert(parentExternalID); err != nil {
		return "", fmt.Errorf("parentExternalId: %w", err)
	}
	// NUL keeps (parent, description) pairs from colliding across boundaries.
	name := parentExternalID + "\x00" + description
	id := uuid.NewSHA1(scopedNamespace, []byte(name))
	return sourceApp + Separator + entityType + Separator + id.String(), nil
}

// Validate reports whether id is structurally valid: exactly three non-empty
// segments with a syntactically valid UUID in the last position. It says
// nothing about remote existence.
func Validate(id string) bool {
	parts := strings.Split(id, Separator)
	if len(parts) != 3 {
		return false
	}
	if parts[0] == "" || parts[1] == "" {
		return false
	}
	_, err := uuid.Parse(parts[2])
	return err == nil
}

// Assert returns a domain.ErrValidation-wrapped error when id is malformed.
func Assert(id string) error {
	if !Validate(id) {
		return fmt.Errorf("%w: externalId %q must match {sourceApp}:{entityType}:{uuid}", domain.ErrValidation, id)
	}
	return nil
}

// EntityType returns the middle segment of a valid identifier, "" otherwise.
func EntityType(id string) string {
	parts := strings.Split(id, Separator)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

func checkSegment(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", domain.ErrValidation, field)
	}
	if strings.Contains(value, Separator) {
		return fmt.Errorf("%w: %s must not contain %q", domain.ErrValidation, field, Separator)
	}
	return nil
}
