package commands

import (
	"fmt"
	"strings"

	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
)

func normalizeRef(kind entities.Kind, entityID string) (string, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return "", domainerrors.ErrInvalidEntityID
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", domainerrors.ErrInvalidEntityKind, kind)
	}
	return entityID, nil
}

func normalizeSubject(subjectID string) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", domainerrors.ErrInvalidSubjectID
	}
	return subjectID, nil
}
